// Package service defines the validator operations available to the consensus
// engine and the adapter that applies the engine's failure contract to them.
//
// # Service
//
// Service is the narrow request/response interface offered by the hosting
// validator: pending-block lifecycle (initialize, summarize, finalize, cancel),
// block verdicts (check, commit, ignore, fail), chain queries (chain head, blocks,
// settings) and engine-to-engine gossip (send to one peer, broadcast).
// Implementations exist per transport; devnet provides an in-process one.
//
// # Adapter
//
// Adapter is the only way the engine talks to a Service:
//
//   - Summarize and finalize retry on ErrBlockNotReady at a fixed interval
//     (DefaultRetryInterval), logging the onset of each wait once.
//   - Cancel treats ErrInvalidState (nothing pending) as success.
//   - Every other error is wrapped and returned. The engine treats it as fatal.
//
// Adapter holds per-engine state and must not be shared between engines.
package service
