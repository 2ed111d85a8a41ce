package interval

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

const testBED = `track name=repeats
# comment
chr1	100	200	a
chr1	150	250	b
chr1	250	260
chr1	400	500
chr2	0	10
chr2	5	5
`

func TestLoadBED(t *testing.T) {
	u, err := NewBEDUnion(strings.NewReader(testBED), NewBEDOpts{})
	assert.NoError(t, err)
	expect.EQ(t, u.nameMap, map[string][]PosType{
		"chr1": {100, 260, 400, 500},
		"chr2": {0, 10},
	})
	expect.EQ(t, u.Covered(), int64(270))
	expect.EQ(t, u.Entries(), []Entry{
		{"chr1", 100, 260}, {"chr1", 400, 500}, {"chr2", 0, 10}})

	u, err = NewBEDUnion(strings.NewReader("chr1\t10\t20\n"), NewBEDOpts{OneBasedInput: true, Padding: 5})
	assert.NoError(t, err)
	expect.EQ(t, u.nameMap["chr1"], []PosType{4, 25})
}

func TestLoadBEDErrors(t *testing.T) {
	_, err := NewBEDUnion(strings.NewReader("chr1\t10\n"), NewBEDOpts{})
	assert.Regexp(t, err, "fewer than 3 columns")
	_, err = NewBEDUnion(strings.NewReader("chr1\t30\t20\n"), NewBEDOpts{})
	assert.Regexp(t, err, "invalid coordinate pair")
	_, err = NewBEDUnion(strings.NewReader("chr1\tx\t20\n"), NewBEDOpts{})
	expect.NotNil(t, err)
}

func TestContains(t *testing.T) {
	u, err := NewBEDUnion(strings.NewReader(testBED), NewBEDOpts{})
	assert.NoError(t, err)
	tests := []struct {
		chr  string
		pos  PosType
		want bool
	}{
		{"chr1", 99, false},
		{"chr1", 100, true},
		{"chr1", 259, true},
		{"chr1", 260, false},
		{"chr1", 450, true},
		{"chr1", 500, false},
		{"chr2", 0, true},
		{"chr3", 0, false},
	}
	for _, tt := range tests {
		expect.EQ(t, u.ContainsByName(tt.chr, tt.pos), tt.want, "%s:%d", tt.chr, tt.pos)
	}
	expect.True(t, u.IntersectsByName("chr1", 50, 101))
	expect.False(t, u.IntersectsByName("chr1", 50, 100))
	expect.True(t, u.IntersectsByName("chr1", 300, 401))
	expect.False(t, u.IntersectsByName("chr1", 260, 400))
	expect.True(t, u.IntersectsByName("chr1", 120, 130))
	expect.False(t, u.IntersectsByName("chr1", 120, 120))
	expect.False(t, u.IntersectsByName("chrX", 0, 1000))
}

func TestFromPathGzip(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "exclude.bed.gz")
	f, err := os.Create(path)
	assert.NoError(t, err)
	w := gzip.NewWriter(f)
	_, err = w.Write([]byte(testBED))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, f.Close())

	u, err := NewBEDUnionFromPath(context.Background(), path, NewBEDOpts{})
	assert.NoError(t, err)
	expect.True(t, u.ContainsByName("chr1", 420))
	expect.False(t, u.Empty())
}

func TestParseRegionString(t *testing.T) {
	tests := []struct {
		region string
		want   Entry
		err    string
	}{
		{"chr1:101-200", Entry{"chr1", 100, 200}, ""},
		{"chr1:1,001-2,000", Entry{"chr1", 1000, 2000}, ""},
		{"chr1:5", Entry{"chr1", 4, 5}, ""},
		{"chrM", Entry{"chrM", 0, posTypeMax - 1}, ""},
		{"HLA-A*01:01:01:01:10-20", Entry{"HLA-A*01:01:01:01", 9, 20}, ""},
		{"", Entry{}, "empty region"},
		{":1-2", Entry{}, "empty contig"},
		{"chr1:0-10", Entry{}, "bad start"},
		{"chr1:20-10", Entry{}, "bad range"},
	}
	for _, tt := range tests {
		got, err := ParseRegionString(tt.region)
		if tt.err != "" {
			assert.Regexp(t, err, tt.err)
			continue
		}
		assert.NoError(t, err)
		expect.EQ(t, got, tt.want)
	}
	expect.EQ(t, Entry{"chr2", 9, 20}.String(), "chr2:10-20")

	entries, err := ParseRegions("chr1:1-10 chr2")
	assert.NoError(t, err)
	expect.EQ(t, len(entries), 2)
}
