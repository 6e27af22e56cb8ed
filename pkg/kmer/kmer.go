// Package kmer estimates the k-mer search range handed to the assembler from
// the read lengths at the head of a FASTQ file.
package kmer

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/lo"
)

var (
	// SampleLines is how many lines are read from the head of the file.
	SampleLines = 400
	// LengthScale divides the summed read length; with SampleLines/4 records
	// sampled it gives the mean read length.
	LengthScale = 100
)

var ErrDegenerate = errors.New("degenerate k-mer range")

// Range is the lower and upper k-mer bound for one sample.
type Range struct {
	Start int
	End   int
}

func (r Range) Valid() bool {
	return r.Start > 0 && r.End > r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// FromLengths applies the floor-division heuristic to a set of read lengths.
func FromLengths(lengths []int) Range {
	total := lo.Sum(lengths) / LengthScale
	start := total / 3
	return Range{Start: start, End: total / 3 * 2}
}

// ReadLengths returns the length of the sequence line of every record found
// in the first SampleLines lines of r, decompressing gzip input.
func ReadLengths(r io.Reader) (lengths []int, err error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		var gz *gzip.Reader
		gz, err = gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		br = bufio.NewReader(gz)
	}

	for n := 1; n <= SampleLines; n++ {
		var line string
		line, err = br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if line == "" && err == io.EOF {
			break
		}
		if n%4 == 2 {
			lengths = append(lengths, len(strings.TrimSuffix(line, "\n")))
		}
		if err == io.EOF {
			break
		}
	}
	return lengths, nil
}

// Estimate derives the k-mer range of the reads in path. A nil logger is
// silent.
func Estimate(logger *slog.Logger, path string) (Range, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	f, err := os.Open(path)
	if err != nil {
		return Range{}, err
	}
	defer f.Close()

	lengths, err := ReadLengths(f)
	if err != nil {
		return Range{}, fmt.Errorf("read %s: %w", path, err)
	}
	r := FromLengths(lengths)
	logger.Debug("sampled reads", "path", path, "records", len(lengths), "bases", lo.Sum(lengths), "range", r.String())
	return r, nil
}
