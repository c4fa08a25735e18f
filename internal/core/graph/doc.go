// Package graph implements the playlist generation graph: a directed graph of
// nodes that source tracks from the library, filter and combine them, and
// produce derived playlists.
//
// Nodes live in an arena owned by a Graph and are addressed by stable integer
// handles (ID). Each node caches an input result (one track list per input
// connection) and an output result. Mutating a node's configuration, or the
// connections around it, clears the cached results of the node and of every
// node reachable through its outputs; nothing upstream is touched.
//
// Source nodes do not fetch everything the library has. At fetch time a source
// walks forward over every node it feeds and ORs their declared requirements
// (artists, tags, albums, audio features), so optional joins are only paid for
// when some consumer needs them.
//
// The Driver evaluates a graph in dependency order. Independent branches run
// concurrently; a node with several consumers is computed once and its cached
// output is shared.
package graph
