package retro

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/adamewing/gripper2/annotation"
	"github.com/adamewing/gripper2/encoding/bamprovider"
	"github.com/adamewing/gripper2/encoding/fasta"
	"github.com/adamewing/gripper2/interval"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// Sample is one input BAM.
type Sample struct {
	// Name is the sample name. If "", it's taken from the SM field of the
	// first read group, or else from the file name.
	Name string
	// Path is the path of the coordinate-sorted BAM file.
	Path string
	// Index is the path of the BAM index. If "", Path + ".bai".
	Index string
}

// DetectRequest holds the inputs of Detect.
type DetectRequest struct {
	Samples []Sample
	DB      *annotation.DB
	// Ref, if non-nil, enables sequence matching of junction clips.
	Ref fasta.Fasta
	// Exclude, if non-nil, lists regions where mates and sites are ignored.
	Exclude *interval.BEDUnion
	// Regions, if non-empty, restricts the scan.
	Regions []interval.Entry
	Opts    Opts
}

// Result is the outcome of Detect.
type Result struct {
	// Samples lists the sample names, in input order.
	Samples []string
	// Header is the header of the first BAM.
	Header *sam.Header
	// Evidence has one entry per sample.
	Evidence []*Evidence
	// Calls are the merged calls, in reference order.
	Calls []*Call
	// SampleStats has the stats of each sample; Stats sums them.
	SampleStats []Stats
	Stats       Stats
}

// SampleName returns the SM field of the first read group in h, or the base
// name of path without extension.
func SampleName(h *sam.Header, path string) string {
	if h != nil {
		for _, rg := range h.RGs() {
			if sm := rg.Get(sam.NewTag("SM")); sm != "" {
				return sm
			}
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// RefOrder maps each reference name of h to its index.
func RefOrder(h *sam.Header) map[string]int {
	if h == nil {
		return nil
	}
	order := map[string]int{}
	for i, ref := range h.Refs() {
		order[ref.Name()] = i
	}
	return order
}

// Detect scans every sample, then clusters, refines, filters, and merges
// the candidates.
func Detect(ctx context.Context, req DetectRequest) (res *Result, err error) {
	if len(req.Samples) == 0 {
		return nil, errors.E(errors.Invalid, "no input BAM")
	}
	if err := req.Opts.Validate(); err != nil {
		return nil, err
	}
	providers := make([]bamprovider.Provider, len(req.Samples))
	defer func() {
		e := errors.Once{}
		e.Set(err)
		for _, p := range providers {
			if p != nil {
				e.Set(p.Close())
			}
		}
		err = e.Err()
		if err != nil {
			res = nil
		}
	}()

	res = &Result{}
	for i, s := range req.Samples {
		providers[i] = bamprovider.NewProvider(s.Path, bamprovider.ProviderOpts{Index: s.Index})
		header, err := providers[i].GetHeader()
		if err != nil {
			return nil, errors.E(err, s.Path)
		}
		if i == 0 {
			res.Header = header
		}
		name := s.Name
		if name == "" {
			name = SampleName(header, s.Path)
		}
		res.Samples = append(res.Samples, name)
		ev, err := Scan(ctx, ScanRequest{
			Sample:   name,
			Provider: providers[i],
			DB:       req.DB,
			Ref:      req.Ref,
			Exclude:  req.Exclude,
			Regions:  req.Regions,
		}, req.Opts)
		if err != nil {
			return nil, err
		}
		res.Evidence = append(res.Evidence, ev)
	}
	calls, stats, err := CallEvidence(ctx, res.Evidence, providers, req.DB, req.Exclude, req.Opts)
	if err != nil {
		return nil, err
	}
	SortCalls(calls, RefOrder(res.Header))
	res.Calls = calls
	res.SampleStats = stats
	for _, s := range stats {
		res.Stats = res.Stats.Merge(s)
	}
	return res, nil
}

// CallEvidence turns the evidence of each sample into merged calls.
// providers, if non-nil, has one provider per sample, used to refine
// candidates; a nil entry skips refinement for that sample. It also
// returns the stats of each sample, with the candidate counts filled in.
func CallEvidence(ctx context.Context, evs []*Evidence, providers []bamprovider.Provider,
	db *annotation.DB, exclude *interval.BEDUnion, opts Opts) ([]*Call, []Stats, error) {
	stats := make([]Stats, len(evs))
	perSample := make([][]*Candidate, len(evs))
	for i, ev := range evs {
		cands := Cluster(ev, db, opts)
		if i < len(providers) && providers[i] != nil {
			if err := Refine(ctx, providers[i], cands, opts); err != nil {
				return nil, nil, errors.E(err, ev.Sample)
			}
		}
		Filter(cands, db, exclude, opts)
		s := ev.Stats
		s.Candidates = len(cands)
		for _, c := range cands {
			if c.Pass() {
				s.Passing++
			}
		}
		log.Printf("%s: %d candidates, %d passing", ev.Sample, s.Candidates, s.Passing)
		stats[i] = s
		perSample[i] = cands
	}
	return MergeSamples(perSample, opts), stats, nil
}
