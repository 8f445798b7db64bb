// Package graph models dataflow topology documents and flattens them.
//
// A document (Config) declares processors, exchanges, the connections
// between them, and optionally modules: other documents mounted under an
// identifier. Flatten validates each document and merges the module tree into
// one Flat graph.
//
// Processor names live in a single flat namespace: a processor myproc
// declared inside module outer is still myproc. Exchange names are
// namespaced by module path, so an exchange frames declared inside outer is
// reached as outer/frames.
//
// A minimal document:
//
//	{
//	    "version": "0.1.0",
//	    "processors": ["publisher", "consumer"],
//	    "exchanges": {
//	        "channel": {"type": "file", "dir": "channel"},
//	    },
//	    "connections": {
//	        "channel": {">": ["publisher"], "<": ["consumer"]},
//	    },
//	    "modules": {
//	        "outer": "outer.json",
//	    },
//	}
package graph
