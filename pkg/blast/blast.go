// Package blast reads tabular blastn reports and turns good hits into
// candidate insertion sites.
package blast

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// OutFmt is the -outfmt value the report columns are parsed against.
var OutFmt = "6 " + strings.Join(HitTitle, " ")

var HitTitle = []string{
	"qseqid",
	"qlen",
	"sacc",
	"pident",
	"length",
	"slen",
	"sstart",
	"send",
	"evalue",
	"bitscore",
}

type Hit struct {
	QueryID   string
	QueryLen  int
	Subject   string
	PercentID float64
	Length    int
	SubLen    int
	SubStart  int
	SubEnd    int
	EValue    float64
	BitScore  float64
}

func (h *Hit) String() string {
	return fmt.Sprintf("%s\t%d\t%s\t%.2f\t%d\t%d\t%d\t%d\t%g\t%g",
		h.QueryID, h.QueryLen, h.Subject, h.PercentID, h.Length, h.SubLen, h.SubStart, h.SubEnd, h.EValue, h.BitScore)
}

// Coverage is the percentage of the query covered by the alignment.
func (h *Hit) Coverage() float64 {
	if h.QueryLen == 0 {
		return 0
	}
	return float64(h.Length) / float64(h.QueryLen) * 100
}

// Interval is the hit span on the subject, low coordinate first.
func (h *Hit) Interval() [2]int {
	return [2]int{min(h.SubStart, h.SubEnd), max(h.SubStart, h.SubEnd)}
}

// Forward reports whether the query aligned to the subject's plus strand.
func (h *Hit) Forward() bool {
	return h.SubStart <= h.SubEnd
}

func parseHit(line string) (hit *Hit, err error) {
	fields := strings.Split(line, "\t")
	if len(fields) != len(HitTitle) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(HitTitle), len(fields))
	}
	hit = &Hit{QueryID: fields[0], Subject: fields[2]}

	ints := []struct {
		dst *int
		src string
	}{
		{&hit.QueryLen, fields[1]},
		{&hit.Length, fields[4]},
		{&hit.SubLen, fields[5]},
		{&hit.SubStart, fields[6]},
		{&hit.SubEnd, fields[7]},
	}
	for _, f := range ints {
		if *f.dst, err = strconv.Atoi(f.src); err != nil {
			return nil, err
		}
	}
	floats := []struct {
		dst *float64
		src string
	}{
		{&hit.PercentID, fields[3]},
		{&hit.EValue, fields[8]},
		{&hit.BitScore, fields[9]},
	}
	for _, f := range floats {
		if *f.dst, err = strconv.ParseFloat(f.src, 64); err != nil {
			return nil, err
		}
	}
	return hit, nil
}

// Parse reads an outfmt 6 report. Blank lines and # comments are skipped.
func Parse(r io.Reader) (hits []*Hit, err error) {
	scanner := bufio.NewScanner(r)
	var n int
	for scanner.Scan() {
		n++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var hit *Hit
		hit, err = parseHit(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		hits = append(hits, hit)
	}
	return hits, scanner.Err()
}

func ParseFile(path string) ([]*Hit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	hits, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return hits, nil
}

// Filter keeps hits meeting both the coverage and the percent identity limit.
func Filter(hits []*Hit, minCoverage, minPercentID float64) []*Hit {
	return lo.Filter(hits, func(h *Hit, _ int) bool {
		return h.Coverage() >= minCoverage && h.PercentID >= minPercentID
	})
}
