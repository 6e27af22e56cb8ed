package blast

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// Site is a stretch of one subject sequence covered by overlapping hits.
type Site struct {
	Subject string
	Start   int
	End     int
	Hits    int
	Queries []string
}

func (s *Site) String() string {
	return fmt.Sprintf("%s:%d-%d", s.Subject, s.Start, s.End)
}

// MergeIntervals merges intersecting intervals.
func MergeIntervals(intervals [][2]int) [][2]int {
	if len(intervals) < 2 {
		return intervals
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i][0] < intervals[j][0]
	})

	merged := make([][2]int, 0)
	current := intervals[0]

	for _, interval := range intervals[1:] {
		if interval[0] <= current[1] {
			if interval[1] > current[1] {
				current[1] = interval[1]
			}
		} else {
			merged = append(merged, current)
			current = interval
		}
	}

	merged = append(merged, current)

	return merged
}

// Sites groups hits by subject and merges their overlapping spans. Sites are
// ordered by subject, then start.
func Sites(hits []*Hit) []*Site {
	var (
		bySubject = lo.GroupBy(hits, func(h *Hit) string { return h.Subject })
		subjects  = lo.Keys(bySubject)
		sites     []*Site
	)
	sort.Strings(subjects)

	for _, subject := range subjects {
		group := bySubject[subject]
		spans := lo.Map(group, func(h *Hit, _ int) [2]int { return h.Interval() })
		for _, span := range MergeIntervals(spans) {
			site := &Site{Subject: subject, Start: span[0], End: span[1]}
			for _, h := range group {
				iv := h.Interval()
				if iv[0] >= span[0] && iv[1] <= span[1] {
					site.Hits++
					site.Queries = append(site.Queries, h.QueryID)
				}
			}
			site.Queries = lo.Uniq(site.Queries)
			sites = append(sites, site)
		}
	}
	return sites
}
