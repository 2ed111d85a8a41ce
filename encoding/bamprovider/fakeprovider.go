package bamprovider

import (
	"sort"

	"github.com/grailbio/hts/sam"
)

// fakeProvider is only for unittests. It yields the given records.
type fakeProvider struct {
	header *sam.Header
	recs   []*sam.Record
}

type fakeIterator struct {
	recs       []*sam.Record
	rec        *sam.Record
	start, end Coord
}

// NewFakeProvider creates a provider that returns "header" in response to a
// GetHeader() call, and recs by GenerateShards+NewIterator calls. recs are
// sorted by coordinate first.
func NewFakeProvider(header *sam.Header, recs []*sam.Record) Provider {
	sorted := append([]*sam.Record(nil), recs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return CoordFromRecord(sorted[i]).LT(CoordFromRecord(sorted[j]))
	})
	return &fakeProvider{header, sorted}
}

// GetHeader implements the Provider interface.
func (b *fakeProvider) GetHeader() (*sam.Header, error) {
	return b.header, nil
}

// GenerateShards implements the Provider interface.
func (b *fakeProvider) GenerateShards(opts GenerateShardsOpts) ([]Shard, error) {
	return generateShards(b.header, opts)
}

// Close implements the Provider interface.
func (b *fakeProvider) Close() error {
	return nil
}

// NewIterator implements the Provider interface.
func (b *fakeProvider) NewIterator(shard Shard) Iterator {
	return &fakeIterator{
		recs:  b.recs,
		start: NewCoord(shard.StartRef, shard.PaddedStart()),
		end:   NewCoord(shard.EndRef, shard.PaddedEnd()),
	}
}

func (i *fakeIterator) Scan() bool {
	for len(i.recs) > 0 {
		i.rec = i.recs[0]
		i.recs = i.recs[1:]
		addr := CoordFromRecord(i.rec)
		if addr.LT(i.start) {
			continue
		}
		if addr.LT(i.end) {
			return true
		}
		i.recs = nil
	}
	return false
}

func (i *fakeIterator) Record() *sam.Record {
	// Return a copy so that the code under test cannot alter the
	// original test input data.
	c := *i.rec
	return &c
}

func (i *fakeIterator) Err() error   { return nil }
func (i *fakeIterator) Close() error { return nil }
