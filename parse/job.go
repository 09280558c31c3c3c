// Package parse turns raw configuration files into vendor-neutral device
// models: format detection, per-format extraction, and a parallel job
// runner over whole snapshots.
package parse

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/remora-net/remora/debug"
	"github.com/remora-net/remora/format"
	"github.com/remora-net/remora/model"
)

// Job is one logical device to parse: usually a single file, for
// configdb-style devices a directory of paired files. The configdb member
// of a multi-file job is identified by its leading '{'.
type Job struct {
	Files map[string]string
	Hint  format.Format
}

func (j Job) names() []string {
	return sortedKeys(j.Files)
}

// Key identifies the job for ordering: its first filename.
func (j Job) Key() string {
	names := j.names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// Result is the outcome of parsing one job. Config is nil unless Status is
// usable.
type Result struct {
	Hostname   string            `json:"hostname,omitempty"`
	Format     format.Format     `json:"format"`
	Status     Status            `json:"status"`
	Config     *model.Config     `json:"-"`
	FileStatus map[string]Status `json:"fileStatus"`
	Warnings   *Warnings         `json:"warnings,omitempty"`
	Err        error             `json:"-"`

	// raw texts, kept so Summarize can diff duplicate hostnames
	files map[string]string
}

// PrimaryFile is the file the device model was extracted from, or the first
// file for jobs that never got that far.
func (r *Result) PrimaryFile() string {
	if r.Config != nil && r.Config.Filename != "" {
		return r.Config.Filename
	}
	names := sortedKeys(r.FileStatus)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func (r *Result) primaryText() string {
	return r.files[r.PrimaryFile()]
}

// ParseJob detects the job's format and runs the matching extractor.
func ParseJob(j Job) *Result {
	res := &Result{
		Format:     format.UnknownFormat,
		Status:     UnknownStatus,
		FileStatus: map[string]Status{},
		Warnings:   &Warnings{},
		files:      j.Files,
	}
	names := j.names()
	if len(names) == 0 {
		res.Warnings.RedFlagf("job with no files")
		res.Status = EmptyStatus
		return res
	}
	fileList := strings.Join(names, ", ")
	setAll := func(s Status) {
		for _, n := range names {
			res.FileStatus[n] = s
		}
		res.Status = s
	}
	var f format.Format
	if len(names) == 1 {
		f = DetectFormat(j.Files[names[0]], j.Hint)
	} else {
		f = detectMulti(j, names)
	}
	res.Format = f
	switch f {
	case format.EmptyFormat:
		res.Warnings.RedFlagf("empty file(s): %s", fileList)
		setAll(EmptyStatus)
		return res
	case format.IgnoredFormat:
		res.Warnings.RedFlagf("ignored file(s): %s", fileList)
		setAll(IgnoredStatus)
		return res
	case format.UnknownFormat:
		res.Warnings.RedFlagf("unable to detect format for file(s): %s", fileList)
		setAll(UnknownStatus)
		return res
	}
	if !f.Supported() {
		res.Warnings.RedFlagf("unsupported configuration format %q for file(s): %s", f, fileList)
		setAll(UnsupportedStatus)
		return res
	}

	primary := names[0]
	var cfg *model.Config
	var partial bool
	if f == format.ConfigDBFormat {
		primary = ""
		for _, n := range names {
			if strings.HasPrefix(strings.TrimSpace(j.Files[n]), "{") {
				primary = n
				break
			}
		}
		if primary == "" {
			res.Warnings.RedFlagf("no configdb member among file(s): %s", fileList)
			setAll(FailedStatus)
			return res
		}
		for _, n := range names {
			if n != primary {
				res.Warnings.Unimplementedf("%s: companion file is not modeled, using %s only", n, primary)
				res.FileStatus[n] = UnsupportedStatus
			}
		}
		c, p, err := extractConfigDB(primary, j.Files[primary], res.Warnings)
		if err != nil {
			res.Err = err
			res.FileStatus[primary] = FailedStatus
			res.Status = FailedStatus
			return res
		}
		cfg, partial = c, p
	} else {
		if len(names) > 1 {
			res.Warnings.RedFlagf("expected one file for format %q, got: %s", f, fileList)
			setAll(FailedStatus)
			return res
		}
		text := j.Files[primary]
		switch f {
		case format.IOSFormat:
			cfg, partial = extractIOS(primary, text, res.Warnings)
		case format.FlatJunosFormat:
			cfg, partial = extractFlatJunos(primary, flatLines(text), res.Warnings)
		case format.JunosFormat:
			lines, err := flattenJunos(text)
			if err != nil {
				res.Warnings.RedFlagf("%s: %v", primary, err)
				setAll(WillNotCommitStatus)
				return res
			}
			cfg, partial = extractFlatJunos(primary, lines, res.Warnings)
		}
	}

	if cfg.Hostname == "" {
		res.Warnings.RedFlagf("no hostname set in %s", fileList)
		cfg.Hostname = GuessHostname(primary)
	}
	cfg.Filename = primary
	cfg.Format = f
	res.Hostname = cfg.Hostname
	res.Config = cfg
	st := PassedStatus
	if partial {
		st = PartialStatus
	}
	res.FileStatus[primary] = st
	res.Status = st
	if debug.Parse() {
		debug.Logf("parse: %s format %s status %s host %s", primary, f, st, res.Hostname)
	}
	return res
}

// detectMulti classifies a multi-file job. Only configdb devices pair
// files, so any member shaped like a configdb dump decides; joint detection
// over concatenated texts would let the companion file win on name order.
func detectMulti(j Job, names []string) format.Format {
	var all []string
	for _, n := range names {
		all = append(all, j.Files[n])
	}
	if reBlank.MatchString(strings.Join(all, "\n")) {
		return format.EmptyFormat
	}
	if j.Hint != format.UnknownFormat {
		return j.Hint
	}
	for _, n := range names {
		t := strings.TrimSpace(j.Files[n])
		if strings.HasPrefix(t, "{") && strings.Contains(t, "DEVICE_METADATA") {
			return format.ConfigDBFormat
		}
	}
	return format.UnknownFormat
}

// Run parses jobs on a bounded worker pool. Results come back ordered by
// job key regardless of which worker finished first. A canceled context
// fails the jobs that never started.
func Run(ctx context.Context, jobs []Job, workers int) []*Result {
	if workers < 1 {
		workers = 1
	}
	ordered := make([]Job, len(jobs))
	copy(ordered, jobs)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].Key() < ordered[b].Key()
	})
	results := make([]*Result, len(ordered))
	tasks := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				results[i] = ParseJob(ordered[i])
			}
		}()
	}
feed:
	for i := range ordered {
		if ctx.Err() != nil {
			for k := i; k < len(ordered); k++ {
				results[k] = canceledResult(ordered[k], ctx.Err())
			}
			break feed
		}
		select {
		case <-ctx.Done():
			for k := i; k < len(ordered); k++ {
				results[k] = canceledResult(ordered[k], ctx.Err())
			}
			break feed
		case tasks <- i:
		}
	}
	close(tasks)
	wg.Wait()
	return results
}

func canceledResult(j Job, err error) *Result {
	res := &Result{
		Format:     j.Hint,
		Status:     FailedStatus,
		FileStatus: map[string]Status{},
		Warnings:   &Warnings{},
		Err:        err,
		files:      j.Files,
	}
	for _, n := range j.names() {
		res.FileStatus[n] = FailedStatus
	}
	return res
}
