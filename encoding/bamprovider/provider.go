package bamprovider

import (
	"github.com/grailbio/hts/sam"
)

// ProviderOpts defines options for NewProvider.
type ProviderOpts struct {
	// Index is the path of the BAM index. If "", it defaults to path + ".bai".
	Index string
}

// GenerateShardsOpts defines behavior of Provider.GenerateShards.
type GenerateShardsOpts struct {
	// Padding is copied to every shard.
	Padding int
	// ShardSize is the width of each shard in bases. If <= 0,
	// DefaultShardSize is used.
	ShardSize int
	// Spans restricts shards to these genomic ranges. If empty, every
	// reference is covered end to end.
	Spans []Span
}

// DefaultShardSize is the default value of GenerateShardsOpts.ShardSize.
const DefaultShardSize = 10000000

// Provider allows reading a BAM file in parallel. Thread safe.
type Provider interface {
	// GetHeader returns the BAM header. The caller must not modify it.
	//
	// REQUIRES: Close has not been called.
	GetHeader() (*sam.Header, error)

	// GenerateShards splits the genome into contiguous, non-overlapping
	// intervals. A record is associated with a shard if its alignment start is
	// within the shard's padded range, so records near boundaries may be
	// associated with two shards.
	//
	// REQUIRES: Close has not been called.
	GenerateShards(opts GenerateShardsOpts) ([]Shard, error)

	// NewIterator returns an iterator over the records in the shard. The shard
	// must not span references.
	//
	// REQUIRES: Close has not been called.
	NewIterator(shard Shard) Iterator

	// Close must be called exactly once. It returns any error encountered by
	// the provider or any of its iterators.
	//
	// REQUIRES: All the iterators created by NewIterator have been closed.
	Close() error
}

// Iterator iterates over sam.Records of one shard in coordinate order.
// Thread compatible.
type Iterator interface {
	// Scan advances to the next record and returns true, or returns false at
	// the end of the range or on error.
	Scan() bool

	// Record returns the current record. Valid only after Scan returned true.
	Record() *sam.Record

	// Err returns the error encountered during iteration. io.EOF is reported
	// as nil.
	Err() error

	// Close must be called exactly once. It returns the value of Err().
	Close() error
}

// NewProvider creates a Provider for the BAM file at path.
func NewProvider(path string, optList ...ProviderOpts) Provider {
	p := &BAMProvider{Path: path}
	for _, o := range optList {
		if o.Index != "" {
			p.Index = o.Index
		}
	}
	return p
}

func generateShards(header *sam.Header, opts GenerateShardsOpts) ([]Shard, error) {
	size := opts.ShardSize
	if size <= 0 {
		size = DefaultShardSize
	}
	if len(opts.Spans) > 0 {
		return ShardsFromSpans(header, opts.Spans, size, opts.Padding)
	}
	return GetPositionBasedShards(header, size, opts.Padding)
}
