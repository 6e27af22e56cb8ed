package pipeline

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/check.v1"

	"ismap/pkg/kmer"
	"ismap/pkg/readset"
	"ismap/pkg/tool"
)

func Test(t *testing.T) { check.TestingT(t) }

type S struct {
	dir    string
	logger *slog.Logger
}

var _ = check.Suite(&S{})

func (s *S) SetUpTest(c *check.C) {
	s.dir = c.MkDir()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner records invocations and fails the one whose step matches fail.
type fakeRunner struct {
	invs []tool.Invocation
	fail string
}

func (f *fakeRunner) Run(inv tool.Invocation) error {
	f.invs = append(f.invs, inv)
	if inv.Step == f.fail {
		return &tool.CommandError{Invocation: inv, ExitStatus: 1}
	}
	return nil
}

func (f *fakeRunner) steps() []string {
	var steps []string
	for _, inv := range f.invs {
		steps = append(steps, inv.Step)
	}
	return steps
}

func fixedRange(r kmer.Range) func(string) (kmer.Range, error) {
	return func(string) (kmer.Range, error) { return r, nil }
}

func (s *S) options() Options {
	return Options{
		Reference:    filepath.Join(s.dir, "IS26.fasta"),
		OutDir:       filepath.Join(s.dir, "out"),
		Query:        DefaultQuery,
		Assemblies:   []string{filepath.Join(s.dir, "sample1_contigs.fasta")},
		AssemblyType: AssemblyFasta,
		Extension:    DefaultExtension,
		Coverage:     90,
		PercentID:    90,
		Programs:     DefaultPrograms(),
	}
}

func (s *S) driver(r tool.Runner) *Driver {
	return &Driver{
		Options:  s.options(),
		Runner:   r,
		Logger:   s.logger,
		Estimate: fixedRange(kmer.Range{Start: 50, End: 100}),
	}
}

func (s *S) TestNewSampleRequiresPair(c *check.C) {
	o := s.options()
	_, err := o.NewSample("x", []string{"x_1.fastq"})
	c.Check(err, check.ErrorMatches, "sample x has 1 read file.*")
}

func (s *S) TestSteps(c *check.C) {
	o := s.options()
	smp, err := o.NewSample("sample1", []string{"r/sample1_R1.fq.gz", "r/sample1_R2.fq.gz"})
	c.Assert(err, check.IsNil)
	smp.Kmer = kmer.Range{Start: 50, End: 100}
	out := o.OutDir
	asm := o.Assemblies[0]

	var got []string
	for _, inv := range o.Steps(smp) {
		got = append(got, inv.String())
	}
	c.Check(got, check.DeepEquals, []string{
		"bwa mem " + o.Reference + " r/sample1_R1.fq.gz r/sample1_R2.fq.gz > " + out + "/sample1.sam",
		"samtools view -Sb -f 36 " + out + "/sample1.sam > " + out + "/sample1_5.bam",
		"samtools view -Sb -f 4 -F 40 " + out + "/sample1.sam > " + out + "/sample1_3.bam",
		"./velvetshell.sh sample1_VO_5 50 100 " + out + "/sample1_5.bam " + out + " sample1_5_contigs.fasta",
		"./velvetshell.sh sample1_VO_3 50 100 " + out + "/sample1_3.bam " + out + " sample1_3_contigs.fasta",
		"makeblastdb -in " + asm + " -dbtype nucl",
		"blastn -query test_regions.fasta -db " + asm + " -outfmt '6 qseqid qlen sacc pident length slen sstart send evalue bitscore' -out " + out + "/sample1_blast.txt",
	})
	c.Check(o.Steps(smp)[5].SkipIfExists, check.Equals, asm+".nin")
}

func (s *S) TestStepsWithoutAssembly(c *check.C) {
	o := s.options()
	o.Assemblies = nil
	smp, err := o.NewSample("sample1", []string{"a", "b"})
	c.Assert(err, check.IsNil)
	c.Check(o.Steps(smp), check.HasLen, 5)

	o = s.options()
	o.AssemblyType = AssemblyGenbank
	smp, err = o.NewSample("sample1", []string{"a", "b"})
	c.Assert(err, check.IsNil)
	c.Check(smp.Assembly, check.Equals, "")
}

func (s *S) TestAssemblyMatchIgnoresExtension(c *check.C) {
	o := s.options()
	o.Assemblies = []string{"asm/other_contigs.fa", "asm/s2_contigs.fna", "asm/s2.fasta"}
	c.Check(o.assemblyFor("s2"), check.Equals, "asm/s2_contigs.fna")
	c.Check(o.assemblyFor("s3"), check.Equals, "")
}

func (s *S) TestRunOrderAndSkip(c *check.C) {
	r := &fakeRunner{}
	d := s.driver(r)
	rs := readset.NewResolver("", "", nil).Resolve([]string{
		"sample1_S1_L001_R1_001.fastq.gz",
		"sample1_S1_L001_R2_001.fastq.gz",
		"lonely_1.fastq",
		"other_1.fastq", "other_2.fastq",
	})

	result, err := d.Run(rs)
	c.Assert(err, check.IsNil)
	c.Check(result.Skipped, check.DeepEquals, []string{"lonely"})
	c.Assert(result.Samples, check.HasLen, 2)
	c.Check(result.Samples[0].ID, check.Equals, "other")
	c.Check(result.Samples[1].ID, check.Equals, "sample1")
	c.Check(result.Samples[1].Kmer, check.Equals, kmer.Range{Start: 50, End: 100})

	c.Check(r.steps(), check.DeepEquals, []string{
		"bwa_index",
		"align", "five_prime", "three_prime", "assemble_5", "assemble_3",
		"align", "five_prime", "three_prime", "assemble_5", "assemble_3", "blast_db", "blast",
	})
}

func (s *S) TestRunSkipsExistingIndexes(c *check.C) {
	r := &fakeRunner{}
	d := s.driver(r)
	c.Assert(os.WriteFile(d.Options.Reference+".bwt", nil, 0644), check.IsNil)
	c.Assert(os.WriteFile(d.Options.Assemblies[0]+".nin", nil, 0644), check.IsNil)

	rs := &readset.ReadSets{Sets: map[string][]string{"sample1": {"f", "r"}}}
	_, err := d.Run(rs)
	c.Assert(err, check.IsNil)
	c.Check(r.steps(), check.DeepEquals, []string{
		"align", "five_prime", "three_prime", "assemble_5", "assemble_3", "blast",
	})
}

func (s *S) TestRunAbortsOnCommandFailure(c *check.C) {
	r := &fakeRunner{fail: "five_prime"}
	d := s.driver(r)
	rs := &readset.ReadSets{Sets: map[string][]string{"a": {"a1", "a2"}, "b": {"b1", "b2"}}}

	_, err := d.Run(rs)
	var cmdErr *tool.CommandError
	c.Assert(errors.As(err, &cmdErr), check.Equals, true)
	c.Check(cmdErr.Invocation.Step, check.Equals, "five_prime")
	c.Check(strings.HasPrefix(err.Error(), "sample a: "), check.Equals, true)
	c.Check(r.steps(), check.DeepEquals, []string{"bwa_index", "align", "five_prime"})
}

func (s *S) TestRunRejectsDegenerateRange(c *check.C) {
	r := &fakeRunner{}
	d := s.driver(r)
	d.Estimate = fixedRange(kmer.Range{})
	rs := &readset.ReadSets{Sets: map[string][]string{"a": {"a1", "a2"}}}

	_, err := d.Run(rs)
	c.Check(errors.Is(err, kmer.ErrDegenerate), check.Equals, true)
	c.Check(r.steps(), check.DeepEquals, []string{"bwa_index"})
}

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (s *S) TestLiveRunInspectsArtifacts(c *check.C) {
	var buf bytes.Buffer
	d := s.driver(nil)
	d.Live = true
	d.Logger = debugLogger(&buf)
	c.Assert(os.MkdirAll(d.Options.OutDir, 0755), check.IsNil)
	c.Assert(os.WriteFile(d.Options.Reference, []byte(">IS26\nACGTACGTAC\n"), 0644), check.IsNil)

	// stands in for the external tools by writing what they would produce
	d.Runner = writerRunner(map[string]string{
		"align": "@SQ\tSN:IS26\tLN:10\n" +
			"r1\t101\tIS26\t1\t0\t*\t=\t1\t0\t*\t*\n" +
			"r2\t69\tIS26\t1\t0\t*\t=\t1\t0\t*\t*\n" +
			"r3\t69\tIS26\t1\t0\t*\t=\t1\t0\t*\t*\n",
		"blast": "IS26_left\t100\tcontig_1\t99.0\t100\t5000\t200\t299\t1e-50\t180\n" +
			"IS26_left\t100\tcontig_2\t80.0\t100\t5000\t200\t299\t1e-10\t50\n",
	})

	rs := &readset.ReadSets{Sets: map[string][]string{"sample1": {"f", "r"}}}
	result, err := d.Run(rs)
	c.Assert(err, check.IsNil)
	c.Assert(result.Samples, check.HasLen, 1)
	smp := result.Samples[0]
	c.Check(smp.Census.Records, check.Equals, 3)
	c.Check(smp.Census.FivePrime, check.Equals, 1)
	c.Check(smp.Census.ThreePrime, check.Equals, 2)
	c.Check(smp.Hits, check.HasLen, 1)
	c.Assert(smp.Sites, check.HasLen, 1)
	c.Check(smp.Sites[0].String(), check.Equals, "contig_1:200-299")
	c.Check(strings.Count(buf.String(), `msg="kept hit"`), check.Equals, 1)
	c.Check(strings.Contains(buf.String(), `hit="IS26_left\t100\tcontig_1\t99.00\t100\t5000\t200\t299\t1e-50\t180"`), check.Equals, true)
}

func (s *S) TestDefaultEstimatorLogs(c *check.C) {
	var buf bytes.Buffer
	forward := filepath.Join(s.dir, "sample1_1.fastq")
	record := "@r\n" + strings.Repeat("A", 150) + "\n+\n" + strings.Repeat("I", 150) + "\n"
	c.Assert(os.WriteFile(forward, []byte(strings.Repeat(record, 100)), 0644), check.IsNil)

	d := s.driver(&fakeRunner{})
	d.Estimate = nil
	d.Logger = debugLogger(&buf)
	result, err := d.Run(&readset.ReadSets{Sets: map[string][]string{"sample1": {forward, "sample1_2.fastq"}}})
	c.Assert(err, check.IsNil)
	c.Assert(result.Samples, check.HasLen, 1)
	c.Check(result.Samples[0].Kmer, check.Equals, kmer.Range{Start: 50, End: 100})
	c.Check(strings.Contains(buf.String(), `msg="sampled reads" path=`+forward+` records=100`), check.Equals, true)
}

func (s *S) TestLiveRunNeedsReference(c *check.C) {
	d := s.driver(&fakeRunner{})
	d.Live = true
	_, err := d.Run(&readset.ReadSets{Sets: map[string][]string{}})
	c.Check(errors.Is(err, os.ErrNotExist), check.Equals, true)
}

func (s *S) TestCountFasta(c *check.C) {
	path := filepath.Join(s.dir, "ref.fasta")
	c.Assert(os.WriteFile(path, []byte(">IS26 transposase\nACGTACGT\nACGT\n>IS1\nGGGG\n"), 0644), check.IsNil)
	n, err := CountFasta(path)
	c.Assert(err, check.IsNil)
	c.Check(n, check.Equals, 2)
}

func (s *S) TestRequirements(c *check.C) {
	reqs := DefaultPrograms().Requirements()
	c.Assert(reqs, check.HasLen, 4)
	c.Check(reqs[0].Program, check.Equals, "bwa")
	c.Check(reqs[3].Args, check.DeepEquals, []string{"-version"})
}

// writerRunner writes fixed content to the redirect or -out target of the
// named steps.
type writerRunner map[string]string

func (w writerRunner) Run(inv tool.Invocation) error {
	content, ok := w[inv.Step]
	if !ok {
		return nil
	}
	target := inv.Stdout
	if target == "" {
		target = inv.Outputs[len(inv.Outputs)-1]
	}
	return os.WriteFile(target, []byte(content), 0644)
}
