// Package interval holds genomic interval sets loaded from BED files and
// region strings. Overlapping and touching intervals are merged, so a
// BEDUnion answers membership questions only; it doesn't track individual
// records. Positions are 0-based and fit in a PosType.
package interval
