package parse

import (
	"sort"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// Summary aggregates a parse run for reporting.
type Summary struct {
	Total  int            `json:"total"`
	Counts map[Status]int `json:"counts"`
	// Duplicates maps each hostname claimed by more than one job to the
	// files that claimed it.
	Duplicates map[string][]string `json:"duplicates,omitempty"`
	Warnings   *Warnings           `json:"warnings,omitempty"`
}

// Summarize counts statuses and reports duplicate hostnames. Duplicate
// configs are diffed: byte-identical copies are only pedantic, diverging
// ones are red flags carrying the diff size.
func Summarize(results []*Result) *Summary {
	s := &Summary{
		Total:      len(results),
		Counts:     map[Status]int{},
		Duplicates: map[string][]string{},
		Warnings:   &Warnings{},
	}
	byHost := map[string][]*Result{}
	for _, r := range results {
		s.Counts[r.Status]++
		if r.Hostname != "" {
			byHost[r.Hostname] = append(byHost[r.Hostname], r)
		}
	}
	hosts := sortedKeys(byHost)
	for _, h := range hosts {
		rs := byHost[h]
		if len(rs) < 2 {
			continue
		}
		files := make([]string, len(rs))
		for i, r := range rs {
			files[i] = r.PrimaryFile()
		}
		sort.Strings(files)
		s.Duplicates[h] = files
		first := rs[0]
		for _, r := range rs[1:] {
			ins, del := diffStats(first.primaryText(), r.primaryText())
			if ins == 0 && del == 0 {
				s.Warnings.Pedanticf("duplicate hostname %q: %s and %s are identical",
					h, first.PrimaryFile(), r.PrimaryFile())
				continue
			}
			s.Warnings.RedFlagf("duplicate hostname %q: %s and %s differ (+%d/-%d bytes)",
				h, first.PrimaryFile(), r.PrimaryFile(), ins, del)
		}
	}
	return s
}

func diffStats(a, b string) (ins, del int) {
	dmp := diffpatch.New()
	diffs := dmp.DiffMain(a, b, true)
	for _, d := range diffs {
		switch d.Type {
		case diffpatch.DiffInsert:
			ins += len(d.Text)
		case diffpatch.DiffDelete:
			del += len(d.Text)
		}
	}
	return ins, del
}
