// Package readset groups sequencing read files into samples and pairs their
// forward and reverse reads.
package readset

import (
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/samber/lo"
)

const (
	DefaultForward = "_1"
	DefaultReverse = "_2"

	gzipExt = ".gz"
)

// MiSeq names: samplename_S1_L001_R1_001
var miseqPattern = regexp.MustCompile(`^(.*)(_S.*)(_L.*)(_R.*)(_.*)$`)

type Direction int

const (
	Unknown Direction = iota
	Forward
	Reverse
	// Unrecognized is a MiSeq name whose read group is neither _R1 nor _R2.
	Unrecognized
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	case Unrecognized:
		return "unrecognized"
	}
	return "unknown"
}

// Components splits a read path into its directory, the file name without
// extension and the full extension, which includes a trailing .gz if present.
func Components(path string) (dir, stem, ext string) {
	dir, name := filepath.Split(path)
	var gz string
	if strings.HasSuffix(name, gzipExt) && len(name) > len(gzipExt) {
		gz = gzipExt
		name = strings.TrimSuffix(name, gzipExt)
	}
	ext = filepath.Ext(name)
	stem = strings.TrimSuffix(name, ext)
	return dir, stem, ext + gz
}

// Classification is the outcome of matching one file name.
type Classification struct {
	Path      string
	Stem      string
	Sample    string
	Direction Direction
	// MiSeq reports whether the Illumina pattern matched.
	MiSeq bool
}

// Resolver classifies files using the MiSeq pattern first and the configured
// forward/reverse suffix tokens as a fallback.
type Resolver struct {
	Forward string
	Reverse string
	Logger  *slog.Logger
}

func NewResolver(forward, reverse string, logger *slog.Logger) *Resolver {
	if forward == "" {
		forward = DefaultForward
	}
	if reverse == "" {
		reverse = DefaultReverse
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{Forward: forward, Reverse: reverse, Logger: logger}
}

// Classify matches a single path. The first pattern that matches wins; a file
// matched by the MiSeq pattern is never retried against the suffix tokens.
func (r *Resolver) Classify(path string) Classification {
	_, stem, _ := Components(path)
	var c = Classification{Path: path, Stem: stem}

	if m := miseqPattern.FindStringSubmatch(stem); m != nil {
		c.MiSeq = true
		switch m[4] {
		case "_R1":
			c.Sample, c.Direction = m[1], Forward
		case "_R2":
			c.Sample, c.Direction = m[1], Reverse
		default:
			c.Sample, c.Direction = stem, Unrecognized
		}
		return c
	}

	switch {
	case strings.HasSuffix(stem, r.Forward):
		c.Sample, c.Direction = strings.TrimSuffix(stem, r.Forward), Forward
	case strings.HasSuffix(stem, r.Reverse):
		c.Sample, c.Direction = strings.TrimSuffix(stem, r.Reverse), Reverse
	}
	return c
}

// ReadSets maps sample IDs to one file, or to a [forward, reverse] pair.
type ReadSets struct {
	Sets     map[string][]string
	Paired   int
	Unpaired int

	// Undetermined lists files that matched no naming rule.
	Undetermined []string
	// Orphans lists forward or reverse files without a mate.
	Orphans []string
	// Conflicts lists files whose sample ID was already taken by files
	// matched through a different naming rule.
	Conflicts []string
}

// Samples returns the sample IDs in lexical order.
func (rs *ReadSets) Samples() []string {
	samples := lo.Keys(rs.Sets)
	sort.Strings(samples)
	return samples
}

// IsPaired reports whether sample has both reads.
func (rs *ReadSets) IsPaired(sample string) bool {
	return len(rs.Sets[sample]) == 2
}

// Resolve classifies every path and reconciles forward and reverse reads into
// read sets. Files that cannot be classified are logged and left out.
//
// Files matched by the MiSeq pattern are only paired with other MiSeq files,
// and files matched by the suffix tokens only with each other. A sample ID
// produced by both rules is kept from the MiSeq files; the suffix files are
// reported in Conflicts and not merged.
//
// When a sample has more than one file for the same direction the first path
// is kept. Later files are logged and ignored; they never replace an earlier
// one, so the result does not depend on how many duplicates follow.
func (r *Resolver) Resolve(paths []string) *ReadSets {
	var (
		rs = &ReadSets{Sets: make(map[string][]string)}

		miseq  = newGroup()
		suffix = newGroup()
	)

	for _, path := range paths {
		c := r.Classify(path)
		r.Logger.Debug("classify", "path", path, "sample", c.Sample, "direction", c.Direction.String(), "miseq", c.MiSeq)
		switch c.Direction {
		case Forward, Reverse:
			g := lo.Ternary(c.MiSeq, miseq, suffix)
			if prev, ok := g.add(c); !ok {
				r.Logger.Warn("duplicate read file for sample, keeping first", "sample", c.Sample, "direction", c.Direction.String(), "kept", prev, "ignored", path)
			}
		case Unrecognized:
			r.Logger.Warn("could not determine forward/reverse read status for input file", "path", path)
			r.Logger.Warn("file appears to match the MiSeq naming convention (samplename_S1_L001_[R1]_001), but expected [R1] or [R2] to designate read as forward or reverse", "path", path)
			if prev, ok := rs.Sets[c.Sample]; ok {
				r.Logger.Warn("duplicate read file for sample, keeping first", "sample", c.Sample, "kept", prev[0], "ignored", path)
				continue
			}
			rs.Sets[c.Sample] = []string{path}
			rs.Unpaired++
		default:
			r.Logger.Warn("could not determine forward/reverse read status for input file", "path", path)
			rs.Undetermined = append(rs.Undetermined, path)
		}
	}

	r.reconcile(rs, miseq)
	r.reconcile(rs, suffix)

	if rs.Paired > 0 {
		r.Logger.Info("total paired readsets found", "count", rs.Paired)
	}
	if rs.Unpaired > 0 {
		r.Logger.Info("total single reads found", "count", rs.Unpaired)
	}
	return rs
}

func (r *Resolver) reconcile(rs *ReadSets, g *group) {
	claimed := func(sample string, files ...string) bool {
		if prev, ok := rs.Sets[sample]; ok {
			r.Logger.Warn("sample already resolved from other files, not merged", "sample", sample, "kept", prev, "ignored", files)
			rs.Conflicts = append(rs.Conflicts, files...)
			return true
		}
		return false
	}

	for _, sample := range sortedKeys(g.forward) {
		fwd := g.forward[sample]
		rev, paired := g.reverse[sample]
		if paired {
			if claimed(sample, fwd, rev) {
				continue
			}
			rs.Sets[sample] = []string{fwd, rev}
			rs.Paired++
			continue
		}
		if claimed(sample, fwd) {
			continue
		}
		rs.Sets[sample] = []string{fwd}
		rs.Unpaired++
		rs.Orphans = append(rs.Orphans, fwd)
		r.Logger.Warn("could not find pair for read", "path", fwd)
	}
	for _, sample := range sortedKeys(g.reverse) {
		if _, ok := g.forward[sample]; ok {
			continue
		}
		rev := g.reverse[sample]
		if claimed(sample, rev) {
			continue
		}
		rs.Sets[sample] = []string{rev}
		rs.Unpaired++
		rs.Orphans = append(rs.Orphans, rev)
		r.Logger.Warn("could not find pair for read", "path", rev)
	}
}

type group struct {
	forward map[string]string
	reverse map[string]string
}

func newGroup() *group {
	return &group{forward: make(map[string]string), reverse: make(map[string]string)}
}

// add records c unless its sample already has a file for that direction, in
// which case the kept path is returned with ok false.
func (g *group) add(c Classification) (prev string, ok bool) {
	reads := lo.Ternary(c.Direction == Forward, g.forward, g.reverse)
	if kept, exists := reads[c.Sample]; exists {
		return kept, false
	}
	reads[c.Sample] = c.Path
	return c.Path, true
}

func sortedKeys(m map[string]string) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
