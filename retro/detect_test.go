package retro

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/adamewing/gripper2/encoding/bamprovider"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestBAM(t *testing.T, dir, name string, h *sam.Header, recs []*sam.Record) string {
	sort.SliceStable(recs, func(i, j int) bool {
		return bamprovider.CoordFromRecord(recs[i]).LT(bamprovider.CoordFromRecord(recs[j]))
	})
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := bam.NewWriter(f, h, 1)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	require.NoError(t, bamprovider.IndexBAM(context.Background(), path, ""))
	return path
}

func TestDetect(t *testing.T) {
	e := newTestEnv(t)
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	carrier := writeTestBAM(t, dir, "carrier.bam", e.header, e.insertionRecords(t))
	// The second sample only has reads over the site, without the insertion.
	var refRecs []*sam.Record
	for i := 0; i < 4; i++ {
		pos := testSite - 50 + i*5
		refRecs = append(refRecs, newRec(t, recOpts{
			name: "ref" + string(rune('a'+i)), ref: e.chr2, pos: pos, seq: e.seq("chr2", pos, pos+100),
			flags: sam.Paired | sam.ProperPair, mateRef: e.chr2, matePos: pos + 200,
		}))
	}
	noncarrier := writeTestBAM(t, dir, "noncarrier.bam", e.header, refRecs)

	res, err := Detect(context.Background(), DetectRequest{
		Samples: []Sample{{Name: "carrier", Path: carrier}, {Path: noncarrier}},
		DB:      e.db,
		Ref:     e.ref,
		Opts:    DefaultOpts,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"carrier", "noncarrier"}, res.Samples)
	assert.Equal(t, e.header.Refs()[0].Name(), res.Header.Refs()[0].Name())
	require.Len(t, res.Evidence, 2)
	require.Len(t, res.SampleStats, 2)
	assert.Equal(t, 1, res.Stats.Candidates)
	assert.Equal(t, 1, res.Stats.Passing)

	require.Len(t, res.Calls, 1)
	c := res.Calls[0]
	assert.Equal(t, "PARENT", c.GeneName)
	assert.Equal(t, "chr2", c.Chrom)
	assert.Equal(t, testSite, c.Pos)
	assert.Equal(t, byte('+'), c.Strand)
	assert.Equal(t, []string{FilterPass}, c.Filters)
	assert.True(t, c.Samples[0].Present)
	assert.Equal(t, 12, c.Samples[0].Discordant)
	assert.Equal(t, 3, c.Samples[0].Split)
	assert.False(t, c.Samples[1].Present)

	// Rerunning from the evidence alone, without refinement.
	calls, stats, err := CallEvidence(context.Background(), res.Evidence, nil, e.db, nil, DefaultOpts)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, 0, calls[0].Split())
	assert.True(t, calls[0].Pass())
	assert.Equal(t, 1, stats[0].Passing)
}

func TestDetectErrors(t *testing.T) {
	e := newTestEnv(t)
	_, err := Detect(context.Background(), DetectRequest{DB: e.db, Opts: DefaultOpts})
	assert.Error(t, err)

	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	_, err = Detect(context.Background(), DetectRequest{
		Samples: []Sample{{Path: filepath.Join(dir, "missing.bam")}},
		DB:      e.db,
		Opts:    DefaultOpts,
	})
	assert.Error(t, err)
}

func TestSampleName(t *testing.T) {
	assert.Equal(t, "NA12878", SampleName(nil, "/data/NA12878.bam"))
	h, err := sam.NewHeader([]byte("@RG\tID:rg1\tSM:SAMPLE1\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "SAMPLE1", SampleName(h, "/data/NA12878.bam"))
}
