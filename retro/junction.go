package retro

import (
	"strconv"
	"strings"

	"github.com/adamewing/gripper2/annotation"
	"github.com/adamewing/gripper2/encoding/fasta"
	"github.com/antzucaro/matchr"
	"github.com/grailbio/hts/sam"
)

var (
	tagSA = sam.NewTag("SA")
	tagMQ = sam.NewTag("MQ")
	tagMC = sam.NewTag("MC")
)

// softClips returns the lengths of the leading and trailing soft clips of
// r. Hard clips outside the soft clips are skipped.
func softClips(r *sam.Record) (lead, trail int) {
	cigar := r.Cigar
	for len(cigar) > 0 && cigar[0].Type() == sam.CigarHardClipped {
		cigar = cigar[1:]
	}
	for len(cigar) > 0 && cigar[len(cigar)-1].Type() == sam.CigarHardClipped {
		cigar = cigar[:len(cigar)-1]
	}
	if len(cigar) == 0 {
		return 0, 0
	}
	if cigar[0].Type() == sam.CigarSoftClipped {
		lead = cigar[0].Len()
	}
	if len(cigar) > 1 && cigar[len(cigar)-1].Type() == sam.CigarSoftClipped {
		trail = cigar[len(cigar)-1].Len()
	}
	return
}

// suppAlignment is one entry of an SA tag.
type suppAlignment struct {
	chrom    string
	pos, end int // 0-based, half-open
	reverse  bool
}

// parseSA parses the SA tag of r, "chr,pos,strand,CIGAR,mapQ,NM;...".
// Malformed entries are skipped.
func parseSA(r *sam.Record) []suppAlignment {
	aux := r.AuxFields.Get(tagSA)
	if aux == nil {
		return nil
	}
	val, ok := aux.Value().(string)
	if !ok {
		return nil
	}
	var sas []suppAlignment
	for _, ent := range strings.Split(val, ";") {
		cols := strings.Split(ent, ",")
		if len(cols) < 4 {
			continue
		}
		pos, err := strconv.Atoi(cols[1])
		if err != nil || pos < 1 {
			continue
		}
		cigar, err := sam.ParseCigar([]byte(cols[3]))
		if err != nil {
			continue
		}
		refLen, _ := cigar.Lengths()
		sas = append(sas, suppAlignment{
			chrom:   cols[0],
			pos:     pos - 1,
			end:     pos - 1 + refLen,
			reverse: cols[2] == "-",
		})
	}
	return sas
}

// auxInt converts an integer aux value.
func auxInt(aux sam.Aux) (int, bool) {
	if aux == nil {
		return 0, false
	}
	switch v := aux.Value().(type) {
	case int8:
		return int(v), true
	case uint8:
		return int(v), true
	case int16:
		return int(v), true
	case uint16:
		return int(v), true
	case int32:
		return int(v), true
	case uint32:
		return int(v), true
	}
	return 0, false
}

// mateRefLen returns the reference length of r's mate from the MC tag, or
// the length of r itself when the tag is missing.
func mateRefLen(r *sam.Record) int {
	if aux := r.AuxFields.Get(tagMC); aux != nil {
		if s, ok := aux.Value().(string); ok {
			if cigar, err := sam.ParseCigar([]byte(s)); err == nil {
				if n, _ := cigar.Lengths(); n > 0 {
					return n
				}
			}
		}
	}
	return r.End() - r.Pos
}

// getSeq fetches [start, end) of chrom, returning false if it's out of range.
func getSeq(ref fasta.Fasta, chrom string, start, end int) (string, bool) {
	if start < 0 || end <= start {
		return "", false
	}
	s, err := ref.Get(chrom, uint64(start), uint64(end))
	if err != nil {
		return "", false
	}
	return s, true
}

// upstreamSpliced returns the n bases preceding genomic position pos on the
// transcript spliced at j. pos is near j.Right.Start. It returns false if
// those bases don't cross the junction.
func upstreamSpliced(ref fasta.Fasta, chrom string, j annotation.Junction, pos, n int) (string, bool) {
	if pos >= j.Right.Start {
		k := pos - j.Right.Start
		if k >= n {
			return "", false
		}
		left, ok := getSeq(ref, chrom, j.Left.End-(n-k), j.Left.End)
		if !ok {
			return "", false
		}
		if k == 0 {
			return left, true
		}
		right, ok := getSeq(ref, chrom, j.Right.Start, pos)
		return left + right, ok
	}
	d := j.Right.Start - pos
	return getSeq(ref, chrom, j.Left.End-d-n, j.Left.End-d)
}

// downstreamSpliced returns the n bases starting at genomic position end on
// the transcript spliced at j. end is near j.Left.End.
func downstreamSpliced(ref fasta.Fasta, chrom string, j annotation.Junction, end, n int) (string, bool) {
	if end <= j.Left.End {
		d := j.Left.End - end
		if d >= n {
			return "", false
		}
		right, ok := getSeq(ref, chrom, j.Right.Start, j.Right.Start+n-d)
		if !ok {
			return "", false
		}
		if d == 0 {
			return right, true
		}
		left, ok := getSeq(ref, chrom, end, j.Left.End)
		return left + right, ok
	}
	d := end - j.Left.End
	return getSeq(ref, chrom, j.Right.Start+d, j.Right.Start+d+n)
}

// clipMatches reports whether clip and exonic differ in at most maxMismatch
// positions.
func clipMatches(clip, exonic string, maxMismatch int) bool {
	if len(clip) != len(exonic) {
		return false
	}
	d, err := matchr.Hamming(strings.ToUpper(clip), strings.ToUpper(exonic))
	return err == nil && d <= maxMismatch
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
