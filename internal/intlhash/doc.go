// Package intlhash computes the obfuscated runtime forms of localization keys.
//
// The host application never ships human-readable message keys. At build time
// each key is replaced by a short token derived from a 64-bit xxHash of the
// key. Two derivations are live at the same time while the host migrates:
//
//   - Hash: the current scheme. The digest is laid out little-endian and the
//     first four bytes are packed into six base64 characters, reproducing the
//     host's runtime quirk of reusing the fourth byte for the sixth character.
//   - HashLegacy: the legacy scheme. The first six characters of the standard
//     base64 encoding of the big-endian digest.
//
// Both functions are pure and total over any Go string. Tokens are drawn from
// the base64 alphabet, so they may start with a digit or contain '+' and '/'.
package intlhash
