// Package modgraph models the host's module graph as an append-only stream
// of registrations.
//
// The host initializes its bundle lazily, so modules appear one at a time and
// in an order modhook does not control. A Graph records each module with a
// monotonically increasing sequence number and delivers it to subscribers in
// registration order. Delivery is serialized: a Register call made while
// subscribers are running (from a continuation, say) is queued and delivered
// after the current module, never interleaved with it.
//
// Modules carry their source text and, once executed, their exports. Exports
// are a tree of Exports maps, Function values and JSON scalars. Snapshots of
// a whole bundle are read with ReadSnapshot and written with WriteSnapshot:
//
//	{
//	  "build": "stable-372210",
//	  "version": "v0.0.372",
//	  "modules": [
//	    {"id": "48211", "source": "...", "exports": {"Z": {"$function": "function(e){...}"}}}
//	  ]
//	}
package modgraph
