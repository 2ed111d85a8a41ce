package bamprovider

import (
	"fmt"

	"github.com/grailbio/hts/sam"
)

// RefByName finds the sam.Reference with the given name, or nil.
func RefByName(h *sam.Header, refName string) *sam.Reference {
	for _, ref := range h.Refs() {
		if ref.Name() == refName {
			return ref
		}
	}
	return nil
}

// NewRefIterator creates an iterator over reads starting in the 0-based,
// half-open range [refName:start, refName:limit).
func NewRefIterator(p Provider, refName string, start, limit int) Iterator {
	h, err := p.GetHeader()
	if err != nil {
		return NewErrorIterator(err)
	}
	ref := RefByName(h, refName)
	if ref == nil {
		return NewErrorIterator(fmt.Errorf("bamprovider.NewRefIterator: reference '%s' not found", refName))
	}
	if start < 0 {
		start = 0
	}
	if limit > ref.Len() {
		limit = ref.Len()
	}
	return p.NewIterator(Shard{
		StartRef: ref,
		EndRef:   ref,
		Start:    start,
		End:      limit,
	})
}
