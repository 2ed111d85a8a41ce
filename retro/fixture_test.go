package retro

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/adamewing/gripper2/annotation"
	"github.com/adamewing/gripper2/encoding/fasta"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
)

// The test genome has a three-exon gene PARENT on chr1, with 0-based exons
// [1000,1100), [2000,2100), [3000,3100), and an empty stretch of chr2 where
// a copy of PARENT is inserted at testSite.
const (
	testChromLen = 20000
	testSite     = 10000
)

var testGTF = strings.Join([]string{
	"chr1\tTEST\tgene\t1001\t3100\t.\t+\t.\tgene_id \"P1\"; gene_type \"protein_coding\"; gene_name \"PARENT\";",
	"chr1\tTEST\ttranscript\t1001\t3100\t.\t+\t.\tgene_id \"P1\"; transcript_id \"PT1\"; transcript_type \"protein_coding\";",
	"chr1\tTEST\texon\t1001\t1100\t.\t+\t.\tgene_id \"P1\"; transcript_id \"PT1\"; transcript_type \"protein_coding\";",
	"chr1\tTEST\texon\t2001\t2100\t.\t+\t.\tgene_id \"P1\"; transcript_id \"PT1\"; transcript_type \"protein_coding\";",
	"chr1\tTEST\texon\t3001\t3100\t.\t+\t.\tgene_id \"P1\"; transcript_id \"PT1\"; transcript_type \"protein_coding\";",
	"",
}, "\n")

type testEnv struct {
	header     *sam.Header
	chr1, chr2 *sam.Reference
	seqs       map[string]string
	ref        fasta.Fasta
	genes      []*annotation.Gene
	db         *annotation.DB
}

func randomSeq(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = "ACGT"[r.Intn(4)]
	}
	return string(b)
}

func newTestEnv(t *testing.T) *testEnv {
	e := &testEnv{seqs: map[string]string{}}
	r := rand.New(rand.NewSource(1))
	e.seqs["chr1"] = randomSeq(r, testChromLen)
	e.seqs["chr2"] = randomSeq(r, testChromLen)
	var err error
	e.ref, err = fasta.New(strings.NewReader(">chr1\n" + e.seqs["chr1"] + "\n>chr2\n" + e.seqs["chr2"] + "\n"))
	assert.NoError(t, err)

	e.chr1, err = sam.NewReference("chr1", "", "", testChromLen, nil, nil)
	assert.NoError(t, err)
	e.chr2, err = sam.NewReference("chr2", "", "", testChromLen, nil, nil)
	assert.NoError(t, err)
	e.header, err = sam.NewHeader(nil, []*sam.Reference{e.chr1, e.chr2})
	assert.NoError(t, err)
	e.header.SortOrder = sam.Coordinate

	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "test.gtf")
	assert.NoError(t, os.WriteFile(path, []byte(testGTF), 0644))
	e.genes, err = annotation.ReadGTF(context.Background(), path, annotation.DefaultGTFOpts)
	assert.NoError(t, err)
	e.db, err = annotation.NewDB(e.genes)
	assert.NoError(t, err)
	return e
}

// recOpts describes a test record. Cigar defaults to len(seq)M.
type recOpts struct {
	name    string
	ref     *sam.Reference
	pos     int
	seq     string
	cigar   string
	flags   sam.Flags
	mateRef *sam.Reference
	matePos int
	aux     []string // "TG:Z:value"
}

func newRec(t *testing.T, o recOpts) *sam.Record {
	cigar := []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, len(o.seq))}
	if o.cigar != "" {
		var err error
		cigar, err = sam.ParseCigar([]byte(o.cigar))
		assert.NoError(t, err)
	}
	var aux []sam.Aux
	for _, a := range o.aux {
		x, err := sam.ParseAux([]byte(a))
		assert.NoError(t, err)
		aux = append(aux, x)
	}
	matePos := -1
	if o.mateRef != nil {
		matePos = o.matePos
	}
	r, err := sam.NewRecord(o.name, o.ref, o.mateRef, o.pos, matePos, 0, 60, cigar, []byte(o.seq), testQual(len(o.seq)), aux)
	assert.NoError(t, err)
	r.Flags = o.flags
	return r
}

// testQual returns n base qualities. The BAM writer needs one per base.
func testQual(n int) []byte {
	q := make([]byte, n)
	for i := range q {
		q[i] = 30
	}
	return q
}

// pairFlags returns the flags of a paired read.
func pairFlags(reverse, mateReverse bool) sam.Flags {
	f := sam.Paired
	if reverse {
		f |= sam.Reverse
	}
	if mateReverse {
		f |= sam.MateReverse
	}
	return f
}

func (e *testEnv) seq(chrom string, start, end int) string {
	return e.seqs[chrom][start:end]
}

// discordantPair returns the anchor of a pair with one read at anchorPos on
// chr1 and the mate at matePos on chr2, plus the mate itself.
func (e *testEnv) discordantPair(t *testing.T, name string, anchorPos int, anchorReverse bool, matePos int, mateReverse bool) []*sam.Record {
	anchor := newRec(t, recOpts{
		name: name, ref: e.chr1, pos: anchorPos, seq: e.seq("chr1", anchorPos, anchorPos+50),
		flags: pairFlags(anchorReverse, mateReverse), mateRef: e.chr2, matePos: matePos,
	})
	mate := newRec(t, recOpts{
		name: name, ref: e.chr2, pos: matePos, seq: e.seq("chr2", matePos, matePos+50),
		flags: pairFlags(mateReverse, anchorReverse), mateRef: e.chr1, matePos: anchorPos,
	})
	return []*sam.Record{anchor, mate}
}

// junctionRead returns a read starting at the second exon, whose first clip
// bases come from the end of the first exon.
func (e *testEnv) junctionRead(t *testing.T, name string, clip int) *sam.Record {
	seq := e.seq("chr1", 1100-clip, 1100) + e.seq("chr1", 2000, 2080)
	return newRec(t, recOpts{
		name: name, ref: e.chr1, pos: 2000, seq: seq, cigar: strconv.Itoa(clip) + "S80M",
	})
}

// insertionRecords simulates a + strand copy of PARENT inserted at testSite
// on chr2: forward mates left of the site paired with reverse anchors in
// the parent exons, reverse mates right of it paired with forward anchors,
// split reads clipped at the site, and two junction reads.
func (e *testEnv) insertionRecords(t *testing.T) []*sam.Record {
	var recs []*sam.Record
	anchors := []int{1010, 2010, 3010, 1030, 2030, 3030}
	for i, a := range anchors {
		recs = append(recs, e.discordantPair(t, "fwd"+strconv.Itoa(i), a, true, testSite-300+i*20, false)...)
		recs = append(recs, e.discordantPair(t, "rev"+strconv.Itoa(i), a+5, false, testSite+100+i*20, true)...)
	}
	for i := 0; i < 3; i++ {
		// Trailing clip at the site: genomic bases then the inserted 5' exon.
		seq := e.seq("chr2", testSite-60, testSite) + e.seq("chr1", 1000, 1030)
		recs = append(recs, newRec(t, recOpts{
			name: "split" + strconv.Itoa(i), ref: e.chr2, pos: testSite - 60, seq: seq, cigar: "60M30S",
			flags: sam.Paired | sam.ProperPair, mateRef: e.chr2, matePos: testSite - 300,
		}))
	}
	recs = append(recs, e.junctionRead(t, "junc0", 20), e.junctionRead(t, "junc1", 25))
	// Reference reads spanning the site.
	for i := 0; i < 2; i++ {
		pos := testSite - 40 - i*10
		recs = append(recs, newRec(t, recOpts{
			name: "refread" + strconv.Itoa(i), ref: e.chr2, pos: pos, seq: e.seq("chr2", pos, pos+100),
			flags: sam.Paired | sam.ProperPair, mateRef: e.chr2, matePos: pos + 200,
		}))
	}
	return recs
}
