// Package patches defines patch descriptors and prepares them for the running
// host build.
//
// A Patch selects a module with Find and rewrites its source with one or more
// Replacements. Find and Match hold canon.Template values, Replace holds a
// canon.Replacement; each slot is a canon.Field, so it may be stored or
// computed on every read. Canonicalize rewrites every slot in place, keeping
// computed slots computed. It is idempotent, so preparing a patch twice is
// harmless.
//
// Plugins can be written in Go or loaded from YAML files:
//
//	name: BetterPopout
//	patches:
//	  - find: "renderPopout:this.renderPopout"
//	    replacement:
//	      - match:
//	          regex: '(\i)\.track\('
//	          flags: g
//	        replace: "$self.track($1,"
//	finds:
//	  - name: UserStore
//	    by: props
//	    args: [getCurrentUser, getUser]
//
// A scalar find or match is a literal template; a mapping with a regex key is
// a regular expression template.
package patches
