// Package content holds the descriptors that flow through a pipeline run: a
// Content is raw source text plus its destination Path, and a Download is one
// concrete fetchable item extracted from it.
//
// Collections are plain slices; Filter, Partition and Map cover the typed
// collection operations the pipeline needs.
package content
