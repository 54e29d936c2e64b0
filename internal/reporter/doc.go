// Package reporter checks plugins against a stored host build without
// running the host.
//
// A Runner replays a build snapshot into a fresh module graph with every
// plugin's lazy finds already declared, so finds resolve through the same
// registration stream the host would drive. It then checks each patch:
// its find must select exactly one module (or any number with All), and
// every replacement must change that module's source.
//
// Results are returned as a Report and emitted as registry events, so a
// storage-backed sink keeps a history of which plugins broke on which build.
package reporter
