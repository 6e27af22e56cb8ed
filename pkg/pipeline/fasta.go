package pipeline

import (
	"errors"
	"io"
	"os"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq"
	"github.com/biogo/biogo/seq/linear"
)

var ErrEmptyFasta = errors.New("no sequences in FASTA file")

// CountFasta returns the number of non-empty records in a FASTA file.
func CountFasta(path string) (n int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	template := &linear.Seq{Annotation: seq.Annotation{Alpha: alphabet.DNAredundant}}
	r := fasta.NewReader(file, template)
	for {
		var s seq.Sequence
		s, err = r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
		if s.Len() > 0 {
			n++
		}
	}
	if n == 0 {
		return 0, ErrEmptyFasta
	}
	return n, nil
}
