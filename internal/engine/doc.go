// Package engine contains the tick loop and the prestige economy of the theory.
// This is the heartbeat of "Calculus Matrix".
//
// ARCHITECTURAL RULE: The Engine is single-threaded. Tick, Publish and
// OnPurchase run to completion one at a time; whoever drives it from several
// goroutines (the server, the Ticker) must serialise the calls.
package engine
