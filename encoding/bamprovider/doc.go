// Package bamprovider reads coordinate-sorted, indexed BAM files in parallel.
//
// A Provider splits the genome into Shards and hands out one Iterator per
// shard. Iterators are cheap to create and are pooled per provider.
package bamprovider
