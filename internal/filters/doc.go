// Package filters builds the predicates that decide whether a host module is
// the one a caller is looking for.
//
// There are two families. Source filters look at the module factory's text:
//
//   - ByCode: the source contains every given substring
//   - ByPattern: the source matches a canonical pattern
//
// Export filters look at the executed module's exports. They are tested
// against the export object itself, then its "default" member, then each
// member that is an object or a function, in key order. The first hit is the
// resolved value:
//
//   - ByProps: an object carrying every given property
//   - ByFunc: an arbitrary predicate
//   - ComponentByCode: an exported function whose source contains every
//     given substring
//
// MapMangled combines both: it picks a module by source, then gives stable
// names to its minified exports with one export filter per name.
//
// Code strings may carry #{intl::KEY} and #{ident} placeholders; those are
// canonicalized when the filter is built. A filter whose code cannot be
// canonicalized reports the failure from Err and never matches.
package filters
