package pipeline

import (
	"fmt"
	"path/filepath"
	"strconv"

	"ismap/pkg/blast"
	"ismap/pkg/kmer"
	"ismap/pkg/readset"
	"ismap/pkg/samend"
	"ismap/pkg/tool"
)

// file name suffixes of the per-sample artifacts
const (
	SAMSuffix          = ".sam"
	FiveBAMSuffix      = "_5.bam"
	ThreeBAMSuffix     = "_3.bam"
	FiveVelvetSuffix   = "_VO_5"
	ThreeVelvetSuffix  = "_VO_3"
	FiveContigsSuffix  = "_5_contigs.fasta"
	ThreeContigsSuffix = "_3_contigs.fasta"
	BlastSuffix        = "_blast.txt"

	BwaIndexSuffix   = ".bwt"
	BlastIndexSuffix = ".nin"
)

type Sample struct {
	ID      string
	Forward string
	Reverse string

	Kmer kmer.Range

	// Assembly is the contig file searched for insertion sites, empty when
	// none was supplied for this sample.
	Assembly string

	SAM          string
	FiveBAM      string
	ThreeBAM     string
	FiveVelvet   string
	ThreeVelvet  string
	FiveContigs  string
	ThreeContigs string
	Blast        string

	Census samend.Census
	Hits   []*blast.Hit
	Sites  []*blast.Site
}

// NewSample lays out the artifacts of a paired sample under the output
// directory. Unpaired samples are rejected.
func (o *Options) NewSample(id string, files []string) (*Sample, error) {
	if len(files) < 2 {
		return nil, fmt.Errorf("sample %s has %d read file(s), a forward/reverse pair is required", id, len(files))
	}
	var s = &Sample{
		ID:      id,
		Forward: files[0],
		Reverse: files[1],

		SAM:          o.path(id + SAMSuffix),
		FiveBAM:      o.path(id + FiveBAMSuffix),
		ThreeBAM:     o.path(id + ThreeBAMSuffix),
		FiveVelvet:   id + FiveVelvetSuffix,
		ThreeVelvet:  id + ThreeVelvetSuffix,
		FiveContigs:  o.path(id + FiveContigsSuffix),
		ThreeContigs: o.path(id + ThreeContigsSuffix),
		Blast:        o.path(id + BlastSuffix),
	}
	if o.AssemblyType == AssemblyFasta {
		s.Assembly = o.assemblyFor(id)
	}
	return s, nil
}

func (o *Options) path(name string) string {
	return filepath.Join(o.OutDir, name)
}

// assemblyFor finds the assembly named <sample><extension>, whatever its
// file extension.
func (o *Options) assemblyFor(id string) string {
	for _, asm := range o.Assemblies {
		if _, stem, _ := readset.Components(asm); stem == id+o.Extension {
			return asm
		}
	}
	return ""
}

// IndexStep builds the aligner index of the reference unless it exists.
func (o *Options) IndexStep() tool.Invocation {
	return tool.Invocation{
		Step:         "bwa_index",
		Program:      o.Programs.Bwa,
		Args:         []string{"index", o.Reference},
		Inputs:       []string{o.Reference},
		Outputs:      []string{o.Reference + BwaIndexSuffix},
		SkipIfExists: o.Reference + BwaIndexSuffix,
	}
}

// Steps returns the invocations of one sample in execution order: align,
// extract both ends, assemble both ends, then index and search the assembly.
// The last two are left out when the sample has no assembly.
func (o *Options) Steps(s *Sample) []tool.Invocation {
	var (
		kStart = strconv.Itoa(s.Kmer.Start)
		kEnd   = strconv.Itoa(s.Kmer.End)
		view   = func(step string, sel samend.Selection, out string) tool.Invocation {
			return tool.Invocation{
				Step:    step,
				Program: o.Programs.Samtools,
				Args:    append(append([]string{"view", "-Sb"}, sel.Args()...), s.SAM),
				Stdout:  out,
				Inputs:  []string{s.SAM},
				Outputs: []string{out},
			}
		}
		velvet = func(step, dir, bam, contigs string) tool.Invocation {
			return tool.Invocation{
				Step:    step,
				Program: o.Programs.Velvet,
				Args:    []string{dir, kStart, kEnd, bam, o.OutDir, filepath.Base(contigs)},
				Inputs:  []string{bam},
				Outputs: []string{contigs},
			}
		}
	)

	steps := []tool.Invocation{
		{
			Step:    "align",
			Program: o.Programs.Bwa,
			Args:    []string{"mem", o.Reference, s.Forward, s.Reverse},
			Stdout:  s.SAM,
			Inputs:  []string{o.Reference, s.Forward, s.Reverse},
			Outputs: []string{s.SAM},
		},
		view("five_prime", samend.FivePrime, s.FiveBAM),
		view("three_prime", samend.ThreePrime, s.ThreeBAM),
		velvet("assemble_5", s.FiveVelvet, s.FiveBAM, s.FiveContigs),
		velvet("assemble_3", s.ThreeVelvet, s.ThreeBAM, s.ThreeContigs),
	}
	if s.Assembly == "" {
		return steps
	}
	return append(steps,
		tool.Invocation{
			Step:         "blast_db",
			Program:      o.Programs.Makeblastdb,
			Args:         []string{"-in", s.Assembly, "-dbtype", "nucl"},
			Inputs:       []string{s.Assembly},
			Outputs:      []string{s.Assembly + BlastIndexSuffix},
			SkipIfExists: s.Assembly + BlastIndexSuffix,
		},
		tool.Invocation{
			Step:    "blast",
			Program: o.Programs.Blastn,
			Args:    []string{"-query", o.Query, "-db", s.Assembly, "-outfmt", blast.OutFmt, "-out", s.Blast},
			Inputs:  []string{o.Query, s.Assembly},
			Outputs: []string{s.Blast},
		},
	)
}
