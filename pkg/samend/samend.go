// Package samend counts the reads of a SAM alignment that the end-extraction
// steps select as five-prime and three-prime candidates.
package samend

import (
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/sam"
)

// Selection is a samtools-style flag filter: all Require bits set and no
// Exclude bits set.
type Selection struct {
	Require sam.Flags
	Exclude sam.Flags
}

var (
	// read unmapped, mate mapped to the reverse strand (-f 36)
	FivePrime = Selection{Require: sam.Unmapped | sam.MateReverse}
	// read unmapped, mate mapped to the forward strand (-f 4 -F 40)
	ThreePrime = Selection{Require: sam.Unmapped, Exclude: sam.MateUnmapped | sam.MateReverse}
)

func (s Selection) Match(f sam.Flags) bool {
	return f&s.Require == s.Require && f&s.Exclude == 0
}

// Args renders the selection as samtools view flags.
func (s Selection) Args() []string {
	args := []string{"-f", fmt.Sprint(uint16(s.Require))}
	if s.Exclude != 0 {
		args = append(args, "-F", fmt.Sprint(uint16(s.Exclude)))
	}
	return args
}

type Census struct {
	Records    int
	FivePrime  int
	ThreePrime int
}

// Count reads every record of a SAM stream.
func Count(r io.Reader) (census Census, err error) {
	sr, err := sam.NewReader(r)
	if err == io.EOF {
		return census, nil
	}
	if err != nil {
		return census, err
	}
	for {
		var rec *sam.Record
		rec, err = sr.Read()
		if err == io.EOF {
			return census, nil
		}
		if err != nil {
			return census, fmt.Errorf("record %d: %w", census.Records+1, err)
		}
		census.Records++
		if FivePrime.Match(rec.Flags) {
			census.FivePrime++
		}
		if ThreePrime.Match(rec.Flags) {
			census.ThreePrime++
		}
	}
}

func CountFile(path string) (Census, error) {
	f, err := os.Open(path)
	if err != nil {
		return Census{}, err
	}
	defer f.Close()
	return Count(f)
}
