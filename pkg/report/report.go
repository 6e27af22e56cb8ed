// Package report writes the run summary workbook.
package report

import (
	"strings"

	"github.com/liserjrqlxue/goUtil/simpleUtil"
	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"ismap/pkg/blast"
	"ismap/pkg/pipeline"
	"ismap/pkg/readset"
)

const (
	ReadSetSheet = "ReadSets"
	SampleSheet  = "Samples"
	HitSheet     = "Hits"
)

var (
	ReadSetTitle = []string{
		"Sample",
		"Status",
		"Forward",
		"Reverse",
	}
	SampleTitle = []string{
		"Sample",
		"KmerStart",
		"KmerEnd",
		"SAMRecords",
		"FivePrimeReads",
		"ThreePrimeReads",
		"Assembly",
		"Hits",
		"Sites",
	}
	HitTitle = append(append([]string{"Sample"}, blast.HitTitle...), "coverage", "strand")
)

// Write saves the read sets and per-sample results to path.
func Write(path string, rs *readset.ReadSets, result pipeline.Result) error {
	var xlsx = excelize.NewFile()
	defer xlsx.Close()

	sheets := []struct {
		name  string
		title []string
		rows  [][]any
	}{
		{ReadSetSheet, ReadSetTitle, ReadSetRows(rs)},
		{SampleSheet, SampleTitle, SampleRows(result.Samples)},
		{HitSheet, HitTitle, HitRows(result.Samples)},
	}
	for i, sheet := range sheets {
		index, err := xlsx.NewSheet(sheet.name)
		if err != nil {
			return err
		}
		if i == 0 {
			xlsx.SetActiveSheet(index)
		}
		if err = xlsx.SetSheetRow(sheet.name, "A1", &sheet.title); err != nil {
			return err
		}
		for j, line := range sheet.rows {
			if err = xlsx.SetSheetRow(sheet.name, CoordinatesToCellName(1, j+2), &line); err != nil {
				return err
			}
		}
	}
	if err := xlsx.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	return xlsx.SaveAs(path)
}

func CoordinatesToCellName(col int, row int, abs ...bool) string {
	return simpleUtil.HandleError(
		excelize.CoordinatesToCellName(
			col, row, abs...,
		),
	)
}

func ReadSetRows(rs *readset.ReadSets) (rows [][]any) {
	for _, sample := range rs.Samples() {
		files := rs.Sets[sample]
		if len(files) == 2 {
			rows = append(rows, []any{sample, "paired", files[0], files[1]})
		} else {
			rows = append(rows, []any{sample, "unpaired", files[0]})
		}
	}
	for _, path := range rs.Conflicts {
		rows = append(rows, []any{"", "conflict", path})
	}
	for _, path := range rs.Undetermined {
		rows = append(rows, []any{"", "undetermined", path})
	}
	return rows
}

func SampleRows(samples []*pipeline.Sample) (rows [][]any) {
	for _, s := range samples {
		sites := make([]string, len(s.Sites))
		for i, site := range s.Sites {
			sites[i] = site.String()
		}
		rows = append(rows, []any{
			s.ID,
			s.Kmer.Start,
			s.Kmer.End,
			s.Census.Records,
			s.Census.FivePrime,
			s.Census.ThreePrime,
			s.Assembly,
			len(s.Hits),
			strings.Join(sites, ";"),
		})
	}
	return rows
}

func HitRows(samples []*pipeline.Sample) (rows [][]any) {
	for _, s := range samples {
		for _, h := range s.Hits {
			rows = append(rows, []any{
				s.ID, h.QueryID, h.QueryLen, h.Subject, h.PercentID, h.Length,
				h.SubLen, h.SubStart, h.SubEnd, h.EValue, h.BitScore, h.Coverage(),
				lo.Ternary(h.Forward(), "+", "-"),
			})
		}
	}
	return rows
}
