// Package state tracks the current lifecycle state of every managed
// resource and synchronizes it with peers and remote agents.
//
// Store is the single source of truth for "current state" queries. Bus
// broadcasts locally issued state changes on a cluster Channel and applies
// inbound agent reports to the Store.
//
// # Peer processes
//
// Every steward process (the serve daemon and each one-shot CLI command)
// has its own Store. States written through Bus.Commit are broadcast as
// stored envelopes, and peers write them to their own Store. Transition
// states sent with Bus.Publish are only fanned out. A process that starts
// while a serve daemon is running loads the daemon's table with
// Bus.Hydrate before it acts.
//
// # Inbound report filtering
//
// An agent report whose state equals the kind's self-reported stopped
// sentinel (JVM_STOPPED for JVMs) is dropped and never reaches the Store. A
// managed process that sees itself as stopped says nothing about whether its
// host service has stopped; only a locally issued STOP decides that.
// Reports that cannot be parsed to a known state are logged and dropped.
// Everything else overwrites the Store in arrival order.
package state
