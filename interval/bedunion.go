package interval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
)

// PosType is the coordinate type. BAM positions are limited to int32.
type PosType int32

const posTypeMax = math.MaxInt32

// NewBEDOpts defines behavior of the BED loaders.
type NewBEDOpts struct {
	// OneBasedInput interprets interval boundaries as one-based [start, end]
	// instead of the usual zero-based [start, end).
	OneBasedInput bool
	// Padding extends every interval by this many bases on both sides.
	Padding int
}

// BEDUnion is the union of a set of intervals, stored per chromosome as a
// sorted endpoint array: interval k occupies [a[2k], a[2k+1]). A BEDUnion is
// immutable once built and safe for concurrent use.
type BEDUnion struct {
	nameMap map[string][]PosType
}

// Entry is a single interval with 0-based, half-open coordinates.
type Entry struct {
	ChrName string
	Start0  PosType
	End     PosType
}

// String returns the 1-based region form, e.g. "chr1:101-200".
func (e Entry) String() string {
	return fmt.Sprintf("%s:%d-%d", e.ChrName, e.Start0+1, e.End)
}

// ContainsByName checks whether the (0-based) position pos on chromosome
// chrName is covered.
func (u *BEDUnion) ContainsByName(chrName string, pos PosType) bool {
	a := u.nameMap[chrName]
	// The number of endpoints <= pos is odd iff pos is inside an interval.
	return sort.Search(len(a), func(i int) bool { return a[i] > pos })&1 == 1
}

// IntersectsByName checks whether [start, end) on chrName overlaps any
// interval.
func (u *BEDUnion) IntersectsByName(chrName string, start, end PosType) bool {
	if end <= start {
		return false
	}
	a := u.nameMap[chrName]
	i := sort.Search(len(a), func(i int) bool { return a[i] > start })
	if i&1 == 1 {
		return true
	}
	return i < len(a) && a[i] < end
}

// Empty reports whether the union covers no bases.
func (u *BEDUnion) Empty() bool {
	for _, a := range u.nameMap {
		if len(a) > 0 {
			return false
		}
	}
	return true
}

// Entries returns the merged intervals sorted by chromosome name and start.
func (u *BEDUnion) Entries() []Entry {
	names := make([]string, 0, len(u.nameMap))
	for name := range u.nameMap {
		names = append(names, name)
	}
	sort.Strings(names)
	var entries []Entry
	for _, name := range names {
		a := u.nameMap[name]
		for i := 0; i+1 < len(a); i += 2 {
			entries = append(entries, Entry{name, a[i], a[i+1]})
		}
	}
	return entries
}

// Covered returns the total number of bases in the union.
func (u *BEDUnion) Covered() int64 {
	var n int64
	for _, a := range u.nameMap {
		for i := 0; i+1 < len(a); i += 2 {
			n += int64(a[i+1] - a[i])
		}
	}
	return n
}

// NewBEDUnionFromEntries merges entries, given in any order, into a
// BEDUnion.
func NewBEDUnionFromEntries(entries []Entry, opts NewBEDOpts) (BEDUnion, error) {
	byChr := map[string][]Entry{}
	for _, e := range entries {
		if e.Start0 < 0 || e.End < e.Start0 || e.End >= posTypeMax {
			return BEDUnion{}, errors.E(errors.Invalid,
				fmt.Sprintf("interval: invalid coordinate pair [%d, %d) on %s", e.Start0, e.End, e.ChrName))
		}
		start, end := int64(e.Start0)-int64(opts.Padding), int64(e.End)+int64(opts.Padding)
		if start < 0 {
			start = 0
		}
		if end >= posTypeMax {
			end = posTypeMax - 1
		}
		byChr[e.ChrName] = append(byChr[e.ChrName], Entry{e.ChrName, PosType(start), PosType(end)})
	}
	u := BEDUnion{nameMap: make(map[string][]PosType, len(byChr))}
	for name, es := range byChr {
		sort.Slice(es, func(i, j int) bool { return es[i].Start0 < es[j].Start0 })
		a := []PosType{}
		for _, e := range es {
			if e.End == e.Start0 {
				continue
			}
			if n := len(a); n > 0 && e.Start0 <= a[n-1] {
				if e.End > a[n-1] {
					a[n-1] = e.End
				}
				continue
			}
			a = append(a, e.Start0, e.End)
		}
		u.nameMap[name] = a
	}
	return u, nil
}

// NewBEDUnion loads the first three columns of every record in a BED stream.
// Blank lines and "#", "track" and "browser" lines are skipped.
func NewBEDUnion(reader io.Reader, opts NewBEDOpts) (BEDUnion, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(nil, 1<<20)
	var (
		entries []Entry
		lineIdx int
	)
	sub := 0
	if opts.OneBasedInput {
		sub = 1
	}
	for scanner.Scan() {
		lineIdx++
		line := scanner.Text()
		if line == "" || line[0] == '#' || strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		cols := strings.Fields(line)
		if len(cols) < 3 {
			return BEDUnion{}, errors.E(errors.Invalid, fmt.Sprintf("interval: line %d has fewer than 3 columns", lineIdx))
		}
		start, err := strconv.Atoi(cols[1])
		if err != nil {
			return BEDUnion{}, errors.E(errors.Invalid, fmt.Sprintf("interval: line %d", lineIdx), err)
		}
		end, err := strconv.Atoi(cols[2])
		if err != nil {
			return BEDUnion{}, errors.E(errors.Invalid, fmt.Sprintf("interval: line %d", lineIdx), err)
		}
		start -= sub
		if start < 0 || end < start || end >= posTypeMax {
			return BEDUnion{}, errors.E(errors.Invalid, fmt.Sprintf("interval: invalid coordinate pair on line %d", lineIdx))
		}
		entries = append(entries, Entry{cols[0], PosType(start), PosType(end)})
	}
	if err := scanner.Err(); err != nil {
		return BEDUnion{}, err
	}
	u, err := NewBEDUnionFromEntries(entries, opts)
	if err == nil {
		log.Printf("BED loaded, %d record(s), %d base(s) covered", len(entries), u.Covered())
	}
	return u, err
}

// NewBEDUnionFromPath is NewBEDUnion on a path. Gzipped files are accepted.
func NewBEDUnionFromPath(ctx context.Context, path string, opts NewBEDOpts) (u BEDUnion, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader := io.Reader(in.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, gerr := gzip.NewReader(reader)
		if gerr != nil {
			return u, errors.E(gerr, path)
		}
		defer gz.Close() // nolint: errcheck
		reader = gz
	}
	return NewBEDUnion(reader, opts)
}

// ParseRegionString parses a region of one of the forms
//
//	chr:start-end   (1-based, closed)
//	chr:pos
//	chr
//
// and returns 0-based half-open boundaries. A bare chromosome name covers
// [0, posTypeMax-1).
func ParseRegionString(region string) (Entry, error) {
	if region == "" {
		return Entry{}, errors.E(errors.Invalid, "interval.ParseRegionString: empty region string")
	}
	colon := strings.LastIndexByte(region, ':')
	if colon == -1 {
		return Entry{region, 0, posTypeMax - 1}, nil
	}
	if colon == 0 {
		return Entry{}, errors.E(errors.Invalid, "interval.ParseRegionString: empty contig ID")
	}
	e := Entry{ChrName: region[:colon]}
	rng := strings.ReplaceAll(region[colon+1:], ",", "")
	startStr, endStr := rng, rng
	if dash := strings.IndexByte(rng, '-'); dash >= 0 {
		startStr, endStr = rng[:dash], rng[dash+1:]
	}
	start1, err := strconv.ParseInt(startStr, 10, 32)
	if err != nil || start1 <= 0 {
		return Entry{}, errors.E(errors.Invalid, "interval.ParseRegionString: bad start in "+region)
	}
	end, err := strconv.ParseInt(endStr, 10, 32)
	if err != nil || end < start1 || end >= posTypeMax {
		return Entry{}, errors.E(errors.Invalid, "interval.ParseRegionString: bad range in "+region)
	}
	e.Start0, e.End = PosType(start1-1), PosType(end)
	return e, nil
}

// ParseRegions parses a comma- or space-separated list of regions. Commas
// inside a region's coordinates are not supported here.
func ParseRegions(s string) ([]Entry, error) {
	var entries []Entry
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		e, err := ParseRegionString(f)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
