// Package engine implements the devmode consensus engine.
//
// Devmode is a development-only consensus algorithm: every validator
// publishes a block after a random wait and the network settles on the
// longest chain, breaking ties by block ID. It gives no fault tolerance and
// must not be used where participants are untrusted.
//
// # Core Components
//
// Engine: Registers the algorithm identity and runs the event loop until the
// validator asks it to shut down.
//
// WaitTimePolicy: Picks the publish delay for each chain head from the
// on-chain min/max wait settings.
//
// ForkChoice: Decides whether a validated block extends the chain, replaces
// the current fork, or is ignored.
//
// PublishTimer: Tracks when the pending block may be finalized.
//
// # Usage Example
//
//	eng := engine.NewEngine(engine.DefaultConfig(), logger, engine.NewMetrics(prometheus.DefaultRegisterer))
//
//	// Blocks until Shutdown, Stop, or a fatal service error
//	err := eng.Start(ctx, updates, svc, startup)
//
// # Thread Safety
//
// Start, Stop, and IsRunning are safe to call concurrently. All consensus
// state is owned by the single goroutine running Start.
//
// # Event Loop
//
// Each iteration waits up to Config.PollInterval for an update, handles it,
// then publishes if the wait has expired and no block was published on the
// current chain head. A new chain head cancels the pending block and starts
// a fresh publish cycle.
package engine
