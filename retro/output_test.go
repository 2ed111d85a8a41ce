package retro

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adamewing/gripper2/annotation"
	"github.com/grailbio/testutil"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCalls() []*Call {
	return MergeSamples([][]*Candidate{
		{testCandidate("G1", "chr2", 1000, 1400, 1200, 4, FilterPass)},
		{testCandidate("G1", "chr2", 1100, 1300, 1210, 2, FilterLowSupport),
			testCandidate("G2", "chr1", 100, 200, 150, 5, FilterNoJunction)},
	}, DefaultOpts)
}

func TestWriteTSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTSV(&buf, testCalls(), []string{"s0", "s1"}))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	header := strings.Split(lines[0], "\t")
	assert.Equal(t, "#CHROM", header[0])
	assert.Equal(t, []string{"s0", "s1"}, header[len(header)-2:])

	row := strings.Split(lines[1], "\t")
	require.Len(t, row, len(header))
	assert.Equal(t, []string{"chr1", "151", "100", "200"}, row[:4])
	assert.Equal(t, "G2_name", row[5])
	assert.Equal(t, "NoJunction", row[9])
	assert.Equal(t, "1,2", row[14])
	assert.Equal(t, ".", row[15])
	assert.Equal(t, "5,1,2,0.500", row[16])

	row = strings.Split(lines[2], "\t")
	assert.Equal(t, "chr2", row[0])
	assert.Equal(t, "PASS", row[9])
	assert.Equal(t, "6", row[10])
}

func TestWriteTSVFileGzip(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := filepath.Join(dir, "calls.tsv.gz")
	require.NoError(t, WriteTSVFile(ctx, path, testCalls(), []string{"s0", "s1"}, 1))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	// BGZF is valid multi-member gzip.
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	var want bytes.Buffer
	require.NoError(t, WriteTSV(&want, testCalls(), []string{"s0", "s1"}))
	assert.Equal(t, want.String(), string(data))
}

func TestWriteVCF(t *testing.T) {
	e := newTestEnv(t)
	calls := testCalls()
	SortCalls(calls, RefOrder(e.header))
	var buf bytes.Buffer
	require.NoError(t, WriteVCF(&buf, calls, []string{"s0", "s1"}, VCFOpts{
		Header: e.header,
		Ref:    e.ref,
		RunID:  "run-1",
		Date:   time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	}))
	var meta, records []string
	var columns string
	for _, l := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		switch {
		case strings.HasPrefix(l, "##"):
			meta = append(meta, l)
		case strings.HasPrefix(l, "#"):
			columns = l
		default:
			records = append(records, l)
		}
	}
	assert.Equal(t, "##fileformat=VCFv4.2", meta[0])
	assert.Contains(t, meta, "##fileDate=20240305")
	assert.Contains(t, meta, "##source=gripper2 v0.1.0")
	assert.Contains(t, meta, "##gripper2RunID=run-1")
	assert.Contains(t, meta, "##contig=<ID=chr1,length=20000>")
	assert.Contains(t, meta, `##FILTER=<ID=LowSupport,Description="Fewer discordant pairs than min_discordant">`)
	assert.Equal(t, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\ts0\ts1", columns)
	require.Len(t, records, 2)

	f := strings.Split(records[0], "\t")
	assert.Equal(t, "chr1", f[0])
	assert.Equal(t, "150", f[1])
	assert.Equal(t, calls[0].ID, f[2])
	assert.Equal(t, e.seq("chr1", 149, 150), f[3])
	assert.Equal(t, "<INS:RETRO>", f[4])
	assert.Equal(t, "NoJunction", f[6])
	assert.Equal(t, "SVTYPE=INS;END=150;GENE=G2_name;GENEID=G2;GSTRAND=+;ISTRAND=+;DISC=5;JUNC=3;SPLIT=1;POLYA=0;EXONS=1,2", f[7])
	assert.Equal(t, "GT:AD:VAF", f[8])
	assert.Equal(t, "./.:.:.", f[9])
	assert.Equal(t, "0/1:2,6:0.500", f[10])

	f = strings.Split(records[1], "\t")
	assert.Equal(t, "chr2", f[0])
	assert.Equal(t, "PASS", f[6])
}

func TestFormatFieldNoRef(t *testing.T) {
	assert.Equal(t, "./1:0,4:1.000", formatField(SampleCall{Present: true, Discordant: 4, VAF: 1}))
}

func TestEvidenceRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := filepath.Join(dir, "evidence.rio")

	ev := e.scan(t, e.insertionRecords(t), DefaultOpts)
	empty := &Evidence{Sample: "empty"}
	opts := DefaultOpts
	opts.MinDiscordant = 7

	w, err := NewEvidenceWriter(ctx, path, opts, annotation.DefaultGTFOpts, e.genes)
	require.NoError(t, err)
	require.NoError(t, w.Write(ev))
	require.NoError(t, w.Write(empty))
	require.NoError(t, w.Close(ctx))

	evs, db, gotOpts, err := ReadEvidenceFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, opts, gotOpts)
	require.Len(t, evs, 2)
	assert.Equal(t, ev, evs[0])
	assert.Equal(t, "empty", evs[1].Sample)
	assert.Empty(t, evs[1].Discordant)

	g := db.GeneByName("PARENT")
	require.NotNil(t, g)
	assert.Equal(t, e.genes[0].Exons(), g.Exons())
	require.Len(t, g.Junctions(), 2)
	assert.Equal(t, 2000, g.Junctions()[0].Right.Start)

	// Clustering the reloaded evidence gives the same candidates.
	assert.Equal(t, Cluster(ev, e.db, DefaultOpts), Cluster(evs[0], db, DefaultOpts))
}

func TestEvidenceReaderBadFile(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	_, err := NewEvidenceReader(ctx, filepath.Join(dir, "missing.rio"))
	assert.Error(t, err)
}

func TestWriteMetrics(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "gripper2.prom")
	require.NoError(t, WriteMetrics(context.Background(), path, []string{"s0", "s1"}, []Stats{
		{Reads: 10, Candidates: 2, Passing: 1},
		{Reads: 5, Candidates: 1},
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `gripper2_reads{sample="s0"} 10`)
	assert.Contains(t, text, `gripper2_reads{sample="all"} 15`)
	assert.Contains(t, text, `gripper2_candidates{sample="all"} 3`)
	assert.Contains(t, text, `gripper2_passing{sample="s1"} 0`)
	assert.Contains(t, text, "# TYPE gripper2_duplicates gauge")
}

func TestLoadOpts(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	write := func(name, data string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))
		return path
	}

	opts, err := LoadOpts(ctx, write("good.toml", "min_mapq = 30\nexclude_duplicates = false\npolya_fraction = 0.9\n"), DefaultOpts)
	require.NoError(t, err)
	want := DefaultOpts
	want.MinMapQ = 30
	want.ExcludeDuplicates = false
	want.PolyAFraction = 0.9
	assert.Equal(t, want, opts)

	_, err = LoadOpts(ctx, write("unknown.toml", "min_mapqq = 30\n"), DefaultOpts)
	assert.Error(t, err)
	_, err = LoadOpts(ctx, write("invalid.toml", "cluster_window = -1\n"), DefaultOpts)
	assert.Error(t, err)
	_, err = LoadOpts(ctx, write("syntax.toml", "min_mapq = \n"), DefaultOpts)
	assert.Error(t, err)
	_, err = LoadOpts(ctx, filepath.Join(dir, "missing.toml"), DefaultOpts)
	assert.Error(t, err)
}
