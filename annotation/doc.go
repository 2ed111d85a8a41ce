// Package annotation loads gene models from GENCODE/Ensembl GTF files and
// indexes their exons and exon-exon junctions for position lookups.
//
// All coordinates in this package are 0-based and half-open. GTF records are
// 1-based and closed; ReadGTF converts them on input.
package annotation
