// Package pipeline drives the per-sample external tool chain: alignment to
// the IS reference, end extraction, end assembly and the assembly search.
package pipeline

import (
	"fmt"
	"log/slog"

	"ismap/pkg/blast"
	"ismap/pkg/kmer"
	"ismap/pkg/readset"
	"ismap/pkg/samend"
	"ismap/pkg/tool"
)

const (
	AssemblyFasta   = "fasta"
	AssemblyGenbank = "genbank"

	DefaultQuery     = "test_regions.fasta"
	DefaultExtension = "_contigs"
)

// Programs holds the executable used for each external tool.
type Programs struct {
	Bwa         string
	Samtools    string
	Velvet      string
	Makeblastdb string
	Blastn      string
}

func DefaultPrograms() Programs {
	return Programs{
		Bwa:         "bwa",
		Samtools:    "samtools",
		Velvet:      "./velvetshell.sh",
		Makeblastdb: "makeblastdb",
		Blastn:      "blastn",
	}
}

// Requirements lists the version checks for the installed tools.
func (p Programs) Requirements() []tool.Requirement {
	return []tool.Requirement{
		{Name: "bwa", Program: p.Bwa, Identifier: "Version: 0.7", Version: "0.7.x"},
		{Name: "samtools", Program: p.Samtools, Identifier: "Version: 1.", Version: "1.x"},
		{Name: "makeblastdb", Program: p.Makeblastdb, Args: []string{"-version"}, Identifier: "makeblastdb: 2.", Version: "2.x"},
		{Name: "blastn", Program: p.Blastn, Args: []string{"-version"}, Identifier: "blastn: 2.", Version: "2.x"},
	}
}

type Options struct {
	Reference string
	OutDir    string
	// Query is the region set searched against each sample's assembly.
	Query string

	Assemblies   []string
	AssemblyType string
	Extension    string

	Coverage  float64
	PercentID float64

	Programs Programs
}

type Driver struct {
	Options Options
	Runner  tool.Runner
	Logger  *slog.Logger

	// Estimate derives the k-mer range from a forward read file.
	Estimate func(path string) (kmer.Range, error)

	// Live runs check the reference and inspect the alignment and search
	// results as they are written. Dry runs only emit invocations.
	Live bool
}

type Result struct {
	Samples []*Sample
	// Skipped holds samples without a read pair.
	Skipped []string
}

// Run processes every paired sample in sample ID order. The first failing
// invocation aborts the run.
func (d *Driver) Run(rs *readset.ReadSets) (result Result, err error) {
	if d.Estimate == nil {
		d.Estimate = func(path string) (kmer.Range, error) { return kmer.Estimate(d.Logger, path) }
	}

	if d.Live {
		var n int
		n, err = CountFasta(d.Options.Reference)
		if err != nil {
			return result, fmt.Errorf("reference %s: %w", d.Options.Reference, err)
		}
		d.Logger.Info("reference loaded", "reference", d.Options.Reference, "sequences", n)
	}

	if _, err = tool.RunGated(d.Runner, d.Logger, d.Options.IndexStep()); err != nil {
		return result, err
	}

	for _, id := range rs.Samples() {
		files := rs.Sets[id]
		if len(files) < 2 {
			d.Logger.Warn("skipping sample without a read pair", "sample", id, "files", files)
			result.Skipped = append(result.Skipped, id)
			continue
		}
		var s *Sample
		s, err = d.RunSample(id, files)
		if err != nil {
			return result, err
		}
		result.Samples = append(result.Samples, s)
	}
	return result, nil
}

// RunSample runs the whole tool chain for one paired sample.
func (d *Driver) RunSample(id string, files []string) (s *Sample, err error) {
	logger := d.Logger.With("sample", id)

	s, err = d.Options.NewSample(id, files)
	if err != nil {
		return nil, err
	}

	s.Kmer, err = d.Estimate(s.Forward)
	if err != nil {
		return nil, fmt.Errorf("sample %s: k-mer range: %w", id, err)
	}
	if !s.Kmer.Valid() {
		return nil, fmt.Errorf("sample %s: %w %s from %s", id, kmer.ErrDegenerate, s.Kmer, s.Forward)
	}
	logger.Info("k-mer range", "start", s.Kmer.Start, "end", s.Kmer.End)

	if s.Assembly == "" {
		if d.Options.AssemblyType == AssemblyGenbank {
			logger.Warn("genbank assemblies cannot be searched, skipping assembly search")
		} else {
			logger.Warn("no assembly found for sample, skipping assembly search", "expected", id+d.Options.Extension)
		}
	}

	for _, inv := range d.Options.Steps(s) {
		if _, err = tool.RunGated(d.Runner, logger, inv); err != nil {
			return nil, fmt.Errorf("sample %s: %w", id, err)
		}
		if !d.Live {
			continue
		}
		switch inv.Step {
		case "align":
			d.census(logger, s)
		case "blast":
			d.annotate(logger, s)
		}
	}
	return s, nil
}

func (d *Driver) census(logger *slog.Logger, s *Sample) {
	census, err := samend.CountFile(s.SAM)
	if err != nil {
		logger.Warn("could not count end reads", "sam", s.SAM, "err", err)
		return
	}
	s.Census = census
	logger.Info("end reads", "records", census.Records, "five_prime", census.FivePrime, "three_prime", census.ThreePrime)
}

func (d *Driver) annotate(logger *slog.Logger, s *Sample) {
	hits, err := blast.ParseFile(s.Blast)
	if err != nil {
		logger.Warn("could not read blast report", "report", s.Blast, "err", err)
		return
	}
	s.Hits = blast.Filter(hits, d.Options.Coverage, d.Options.PercentID)
	s.Sites = blast.Sites(s.Hits)
	for _, h := range s.Hits {
		logger.Debug("kept hit", "hit", h.String())
	}
	logger.Info("hits", "total", len(hits), "kept", len(s.Hits), "sites", len(s.Sites))
}
