// Package canon turns placeholder-bearing patch templates into concrete
// matchers and replacements for the running host build.
//
// # Pattern templates
//
// A Template is one of:
//
//   - Literal: plain text. Every regex metacharacter outside a placeholder is
//     escaped, so "a.b" only ever matches a literal "a.b".
//   - Regex: regular expression source plus JavaScript-style flags.
//   - *Pattern: an already canonical pattern. Canonicalizing it again returns
//     it unchanged.
//
// Recognized placeholders:
//
//	#{intl::KEY}       either hashed form of KEY, as accessor or index syntax
//	#{intl::TOKEN::raw} an already hashed current-scheme token, no alternation
//	#{ident}           a bare identifier
//	\i                 a bare identifier (Regex templates only)
//
// A Pattern keeps the original template next to the canonical source. String()
// prints the template, so log lines show what the patch author wrote while
// matching runs against the expansion.
//
// # Replacements and fields
//
// Replacement wraps either static text or a ReplaceFunc. CanonicalizeReplace
// substitutes the "$self" placeholder with the caller's path; function
// replacements are wrapped so every invocation is rewritten.
//
// Field models a patch slot that is either stored or computed on each read.
// Rewrite applies a transformation at the point the value is produced and
// never changes the field's kind.
package canon
