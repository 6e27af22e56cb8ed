package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"ismap/pkg/pipeline"
)

// Config holds every option, from flags, ISMAP_* environment variables or a
// config file.
type Config struct {
	Reads     []string `mapstructure:"reads"`
	Forward   string   `mapstructure:"forward"`
	Reverse   string   `mapstructure:"reverse"`
	Reference string   `mapstructure:"reference"`

	Assemblies []string `mapstructure:"assemblies"`
	Type       string   `mapstructure:"type"`
	Extension  string   `mapstructure:"extension"`
	TypingRef  string   `mapstructure:"typingref"`

	Coverage  float64 `mapstructure:"coverage"`
	PercentID float64 `mapstructure:"percentid"`

	Log    bool   `mapstructure:"log"`
	Output string `mapstructure:"output"`

	DryRun           bool `mapstructure:"dry-run"`
	SkipVersionCheck bool `mapstructure:"skip-version-check"`

	Bwa         string `mapstructure:"bwa"`
	Samtools    string `mapstructure:"samtools"`
	Velvet      string `mapstructure:"velvet"`
	Makeblastdb string `mapstructure:"makeblastdb"`
	Blastn      string `mapstructure:"blastn"`
}

// NewConfig decodes v and validates the result.
func NewConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &c, c.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.Reads) == 0 {
		errs = append(errs, errors.New("--reads is required"))
	}
	if c.Reference == "" {
		errs = append(errs, errors.New("--reference is required"))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("--output is required"))
	}
	if c.Forward == "" || c.Reverse == "" {
		errs = append(errs, errors.New("--forward and --reverse must not be empty"))
	} else if c.Forward == c.Reverse {
		errs = append(errs, fmt.Errorf("--forward and --reverse are both %q", c.Forward))
	}
	if c.Type != pipeline.AssemblyFasta && c.Type != pipeline.AssemblyGenbank {
		errs = append(errs, fmt.Errorf("--type must be %s or %s, got %q", pipeline.AssemblyFasta, pipeline.AssemblyGenbank, c.Type))
	}
	if c.Coverage < 0 || c.Coverage > 100 {
		errs = append(errs, fmt.Errorf("--coverage %v out of range [0,100]", c.Coverage))
	}
	if c.PercentID < 0 || c.PercentID > 100 {
		errs = append(errs, fmt.Errorf("--percentid %v out of range [0,100]", c.PercentID))
	}
	return errors.Join(errs...)
}

func (c *Config) LogFile() string    { return filepath.Clean(c.Output) + ".log" }
func (c *Config) ReportFile() string { return filepath.Clean(c.Output) + ".xlsx" }

func (c *Config) Options() pipeline.Options {
	query := c.TypingRef
	if query == "" {
		query = pipeline.DefaultQuery
	}
	return pipeline.Options{
		Reference:    c.Reference,
		OutDir:       filepath.Clean(c.Output),
		Query:        query,
		Assemblies:   c.Assemblies,
		AssemblyType: c.Type,
		Extension:    c.Extension,
		Coverage:     c.Coverage,
		PercentID:    c.PercentID,
		Programs: pipeline.Programs{
			Bwa:         c.Bwa,
			Samtools:    c.Samtools,
			Velvet:      c.Velvet,
			Makeblastdb: c.Makeblastdb,
			Blastn:      c.Blastn,
		},
	}
}
