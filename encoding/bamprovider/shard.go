// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bamprovider

import (
	"fmt"
	"sort"

	"github.com/grailbio/hts/sam"
)

// Shard is a half-open, 0-based interval [<StartRef,Start>, <EndRef,End>).
// An iterator over a shard yields records whose start positions fall in the
// padded interval [PaddedStart, PaddedEnd). Records in the padding also belong
// to the neighboring shard, so callers that must see each record once check
// RecordInShard.
//
// ShardIdx orders shards by genomic position, starting at 0.
type Shard struct {
	StartRef *sam.Reference
	EndRef   *sam.Reference
	Start    int
	End      int

	Padding  int
	ShardIdx int
}

// PaddedStart returns max(0, Start-Padding).
func (s *Shard) PaddedStart() int {
	if s.Start-s.Padding < 0 {
		return 0
	}
	return s.Start - s.Padding
}

// PaddedEnd returns min(EndRef.Len(), End+Padding).
func (s *Shard) PaddedEnd() int {
	if s.EndRef == nil {
		return s.End + s.Padding
	}
	if n := s.EndRef.Len(); s.End+s.Padding > n {
		return n
	}
	return s.End + s.Padding
}

// RecordInShard returns true if r starts in [Start, End), ignoring padding.
func (s *Shard) RecordInShard(r *sam.Record) bool {
	c := CoordFromRecord(r)
	return NewCoord(s.StartRef, s.Start).LE(c) && c.LT(NewCoord(s.EndRef, s.End))
}

// String returns a debug string for s.
func (s *Shard) String() string {
	return fmt.Sprintf("%d:%s:%d-%s:%d(+%d)", s.ShardIdx,
		s.StartRef.Name(), s.Start, s.EndRef.Name(), s.End, s.Padding)
}

// Span is a [Start, End) range on the named reference.
type Span struct {
	Ref        string
	Start, End int
}

// GetPositionBasedShards splits every reference in header into shards of
// shardSize bases.
func GetPositionBasedShards(header *sam.Header, shardSize, padding int) ([]Shard, error) {
	if shardSize <= 0 {
		return nil, fmt.Errorf("GetPositionBasedShards: shard size must be positive, got %d", shardSize)
	}
	var shards []Shard
	for _, ref := range header.Refs() {
		for start := 0; start < ref.Len(); start += shardSize {
			end := start + shardSize
			if end > ref.Len() {
				end = ref.Len()
			}
			shards = append(shards, Shard{
				StartRef: ref,
				EndRef:   ref,
				Start:    start,
				End:      end,
				Padding:  padding,
				ShardIdx: len(shards),
			})
		}
	}
	return shards, nil
}

// ShardsFromSpans creates shards of at most shardSize bases covering only the
// given spans. Overlapping spans are merged first. Spans on references that
// aren't in header are an error.
func ShardsFromSpans(header *sam.Header, spans []Span, shardSize, padding int) ([]Shard, error) {
	if shardSize <= 0 {
		return nil, fmt.Errorf("ShardsFromSpans: shard size must be positive, got %d", shardSize)
	}
	byRef := map[int][]Span{}
	for _, sp := range spans {
		ref := RefByName(header, sp.Ref)
		if ref == nil {
			return nil, fmt.Errorf("ShardsFromSpans: reference %s not in BAM header", sp.Ref)
		}
		if sp.Start < 0 {
			sp.Start = 0
		}
		if sp.End > ref.Len() {
			sp.End = ref.Len()
		}
		if sp.End <= sp.Start {
			continue
		}
		byRef[ref.ID()] = append(byRef[ref.ID()], sp)
	}
	var shards []Shard
	for _, ref := range header.Refs() {
		sps := byRef[ref.ID()]
		sort.Slice(sps, func(i, j int) bool { return sps[i].Start < sps[j].Start })
		var merged []Span
		for _, sp := range sps {
			if n := len(merged); n > 0 && sp.Start <= merged[n-1].End {
				if sp.End > merged[n-1].End {
					merged[n-1].End = sp.End
				}
				continue
			}
			merged = append(merged, sp)
		}
		for _, sp := range merged {
			for start := sp.Start; start < sp.End; start += shardSize {
				end := start + shardSize
				if end > sp.End {
					end = sp.End
				}
				shards = append(shards, Shard{
					StartRef: ref,
					EndRef:   ref,
					Start:    start,
					End:      end,
					Padding:  padding,
					ShardIdx: len(shards),
				})
			}
		}
	}
	return shards, nil
}
