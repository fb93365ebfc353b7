// Package devnet provides an in-process validator for running the devmode
// engine without a real node.
//
// A Validator keeps a block store and a chain head, builds one pending block
// at a time, and reports what happens to blocks through an ordered update
// channel. Validators joined to a Network relay published blocks and gossip
// to each other, which is enough to exercise fork resolution between
// several engines in a single process.
package devnet
