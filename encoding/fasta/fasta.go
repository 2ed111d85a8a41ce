// Package fasta reads reference sequences from FASTA files, either fully in
// memory or by random access through a samtools-style .fai index.
//
// Sequence names are the characters after '>' up to the first space, so
// '>chr1 assembled' is named "chr1".
package fasta

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

const maxLineLen = 1 << 28

// Fasta represents a set of named reference sequences.
type Fasta interface {
	// Get returns bases [start, end) of the named sequence. Thread-safe.
	Get(seqName string, start, end uint64) (string, error)

	// Len returns the length of the named sequence.
	Len(seqName string) (uint64, error)

	// SeqNames returns sequence names in file order.
	SeqNames() []string
}

type memFasta struct {
	seqs     map[string][]byte
	seqNames []string
}

// New reads all of r into memory.
func New(r io.Reader) (Fasta, error) {
	f := &memFasta{seqs: make(map[string][]byte)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLineLen)
	var (
		name string
		seq  []byte
	)
	add := func() error {
		if name == "" {
			if len(seq) > 0 {
				return errors.New("malformed FASTA file: sequence data before the first header")
			}
			return nil
		}
		if _, ok := f.seqs[name]; ok {
			return errors.Errorf("duplicate sequence %s", name)
		}
		f.seqs[name] = seq
		f.seqNames = append(f.seqNames, name)
		return nil
	}
	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if err := add(); err != nil {
				return nil, err
			}
			name = seqName(line)
			seq = nil
			continue
		}
		seq = append(seq, line...)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA data")
	}
	if err := add(); err != nil {
		return nil, err
	}
	return f, nil
}

func seqName(header []byte) string {
	header = header[1:]
	if i := bytes.IndexAny(header, " \t"); i >= 0 {
		header = header[:i]
	}
	return string(header)
}

// Get implements Fasta.Get().
func (f *memFasta) Get(seqName string, start, end uint64) (string, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found: %s", seqName)
	}
	if end <= start {
		return "", errors.New("start must be less than end")
	}
	if end > uint64(len(s)) {
		return "", errors.Errorf("end is past end of sequence %s: %d", seqName, len(s))
	}
	return string(s[start:end]), nil
}

// Len implements Fasta.Len().
func (f *memFasta) Len(seqName string) (uint64, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found: %s", seqName)
	}
	return uint64(len(s)), nil
}

// SeqNames implements Fasta.SeqNames().
func (f *memFasta) SeqNames() []string {
	return f.seqNames
}

// ReverseComplement returns the reverse complement of seq. Bases other than
// ACGT (either case) become 'N'.
func ReverseComplement(seq string) string {
	out := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		out[len(seq)-1-i] = complement(seq[i])
	}
	return string(out)
}

func complement(b byte) byte {
	switch b {
	case 'A', 'a':
		return 'T'
	case 'C', 'c':
		return 'G'
	case 'G', 'g':
		return 'C'
	case 'T', 't':
		return 'A'
	}
	return 'N'
}
