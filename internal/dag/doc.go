// Package dag implements the release graph: a concurrency-safe directed
// acyclic graph of package names with cycle detection and a tier layering
// used to order registry publication. Every dependency of a node in tier k
// lands in a tier strictly before k.
package dag
