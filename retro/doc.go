// Package retro detects gene retrocopy insertions from paired-end alignments.
//
// A retrocopy is an intronless copy of a gene's processed transcript inserted
// elsewhere in the genome. Two kinds of reads point at one:
//
//   - junction reads, aligned to an exon of the parent gene with a soft clip
//     that continues into the neighboring exon, skipping the intron;
//   - discordant pairs, with one read (the anchor) in an exon of the parent
//     gene and its mate far away, at the insertion site.
//
// Scan collects both kinds of evidence from a BAM file, Cluster groups the
// discordant mates into candidate insertion sites, Refine looks at the reads
// around each site for split reads, poly-A tails and reference support, and
// Filter labels the candidates. Detect runs all of them for a set of samples.
package retro
