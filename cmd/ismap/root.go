package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ismap/pkg/pipeline"
	"ismap/pkg/readset"
)

// NewRootCmd builds the ismap command bound to its own viper instance.
func NewRootCmd() *cobra.Command {
	var (
		v          = viper.New()
		configFile string
		programs   = pipeline.DefaultPrograms()
	)

	cmd := &cobra.Command{
		Use:   "ismap --reads R1 --reads R2 [...] --reference IS.fasta --output DIR",
		Short: "Map insertion sequence sites from paired end reads",
		Long: `Align paired end reads to an insertion sequence, extract the reads
flanking its five-prime and three-prime ends, assemble each end and search
the sample assemblies for insertion sites.

Read pairs are found from MiSeq names (sample_S1_L001_R1_001.fastq.gz) or
from the --forward/--reverse suffixes. Repeat --reads and --assemblies
once per file.`,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
				if err := v.ReadInConfig(); err != nil {
					return err
				}
			}
			for _, name := range []string{"reads", "assemblies"} {
				if err := setArray(v, cmd, name); err != nil {
					return err
				}
			}
			cfg, err := NewConfig(v)
			if err != nil {
				return err
			}
			return Run(cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file with any of the options below (yaml, toml or json)")

	flags.StringArray("reads", nil, "paired end read file for analysing, can be gzipped; repeat for each file")
	flags.String("forward", readset.DefaultForward, "identifier for forward reads if not in MiSeq format")
	flags.String("reverse", readset.DefaultReverse, "identifier for reverse reads if not in MiSeq format")
	flags.String("reference", "", "fasta file for reference gene (eg: insertion sequence) that will be mapped to")
	flags.StringArray("assemblies", nil, "contig assembly for a read set; repeat for each file")
	flags.String("type", pipeline.AssemblyFasta, "indicator for contig assembly type, genbank or fasta")
	flags.String("extension", pipeline.DefaultExtension, "identifier for assemblies")
	flags.String("typingRef", "", "reference regions for typing against (default "+pipeline.DefaultQuery+")")
	flags.Float64("coverage", 90.0, "minimum coverage for hit to be annotated")
	flags.Float64("percentid", 90.0, "minimum percent ID for hit to be annotated")
	flags.Bool("log", false, "switch on logging to <output>.log, otherwise log to stdout")
	flags.String("output", "", "location to store output files")

	flags.Bool("dry-run", false, "print the commands instead of running them")
	flags.Bool("skip-version-check", false, "do not check the installed tool versions")
	flags.String("bwa", programs.Bwa, "bwa binary path")
	flags.String("samtools", programs.Samtools, "samtools binary path")
	flags.String("velvet", programs.Velvet, "velvet assembly wrapper script")
	flags.String("makeblastdb", programs.Makeblastdb, "makeblastdb binary path")
	flags.String("blastn", programs.Blastn, "blastn binary path")

	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
	v.SetEnvPrefix("ismap")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

func noArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument %q: repeat --reads or --assemblies for each file", args[0])
	}
	return nil
}

// setArray copies a repeated flag into v as given, so file names keep their
// commas.
func setArray(v *viper.Viper, cmd *cobra.Command, name string) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	values, err := cmd.Flags().GetStringArray(name)
	if err != nil {
		return err
	}
	v.Set(name, values)
	return nil
}
