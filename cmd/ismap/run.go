package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/liserjrqlxue/goUtil/osUtil"
	"github.com/liserjrqlxue/goUtil/simpleUtil"

	"ismap/pkg/pipeline"
	"ismap/pkg/readset"
	"ismap/pkg/report"
	"ismap/pkg/tool"
)

// NewLogger writes to <output>.log when --log is set, otherwise to stdout.
func NewLogger(cfg *Config, stdout io.Writer) (logger *slog.Logger, closer func()) {
	var (
		w    = stdout
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	)
	closer = func() {}
	if cfg.Log {
		file := osUtil.Create(cfg.LogFile())
		w = file
		closer = func() { simpleUtil.DeferClose(file) }
	}
	return slog.New(slog.NewTextHandler(w, opts)), closer
}

// Run resolves the read sets, drives every paired sample through the tool
// chain and writes the run report.
func Run(cfg *Config, stdout io.Writer) error {
	logger, closer := NewLogger(cfg, stdout)
	defer closer()

	logger.Info("program started")
	logger.Info("command line", "args", strings.Join(os.Args, " "))

	rs := readset.NewResolver(cfg.Forward, cfg.Reverse, logger).Resolve(cfg.Reads)

	var (
		opts   = cfg.Options()
		runner tool.Runner
	)
	if cfg.DryRun {
		runner = &tool.DryRun{Logger: logger, Out: stdout}
	} else {
		runner = &tool.Exec{Logger: logger}
		if !cfg.SkipVersionCheck {
			if err := tool.CheckVersions(logger, opts.Programs.Requirements()...); err != nil {
				return err
			}
		}
	}
	simpleUtil.CheckErr(os.MkdirAll(opts.OutDir, 0755))

	driver := &pipeline.Driver{
		Options: opts,
		Runner:  runner,
		Logger:  logger,
		Live:    !cfg.DryRun,
	}
	result, err := driver.Run(rs)
	if err != nil {
		return err
	}

	logger.Info("SaveAs", "report", cfg.ReportFile())
	if err = report.Write(cfg.ReportFile(), rs, result); err != nil {
		return err
	}
	logger.Info("program finished", "samples", len(result.Samples), "skipped", len(result.Skipped))
	return nil
}
