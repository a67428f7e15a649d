// Package release defines the data model shared by every stage of a
// publication run: the packages to publish, the artifacts the channels
// produce, the per-channel outcomes, and the single release record the
// run aggregates onto.
package release
