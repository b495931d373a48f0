// Package extract turns Content data into Download descriptors.
//
// A Rule runs a compiled pattern over content data. Every match yields one
// Download per configured variant, in match order. The Download's path is a
// clone of the content path with one trailing segment describing where the
// fetched file lands.
package extract
