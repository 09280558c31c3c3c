// Package snapshot loads a snapshot directory into parse jobs.
//
// Layout:
//
//	<dir>/configs/<file>             single-file device
//	<dir>/configs/<device>/<files>   multi-file device
//	<dir>/patches/<name>.patch.json  RFC-6902 overlay for configs/<name>
//
// Hidden entries and device directories with no files are skipped. Each
// patch applies to the JSON member of its target before parsing.
package snapshot

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/remora-net/remora/debug"
	"github.com/remora-net/remora/parse"

	jsonpatch "github.com/evanphx/json-patch"
)

const (
	configsDir  = "configs"
	patchesDir  = "patches"
	patchSuffix = ".patch.json"
)

// Device is one top-level entry under configs/: a single file or a
// directory of paired files. Files are keyed by path relative to the
// snapshot root.
type Device struct {
	Name  string
	Files map[string]string
}

// jsonMember returns the device file holding a JSON document, if any.
func (d *Device) jsonMember() (string, string) {
	names := make([]string, 0, len(d.Files))
	for n := range d.Files {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if strings.HasPrefix(strings.TrimSpace(d.Files[n]), "{") {
			return n, d.Files[n]
		}
	}
	return "", ""
}

// Snapshot is a loaded snapshot directory with overlays already applied.
type Snapshot struct {
	Dir     string
	Devices []Device
	// Patched lists the applied patch files, relative to Dir.
	Patched []string
}

// Load reads dir's configs, groups them per device, and applies the patch
// overlays. It fails on unreadable files, on patches without a JSON target,
// and on patches that do not apply.
func Load(dir string) (*Snapshot, error) {
	s := &Snapshot{Dir: dir}
	if err := s.loadConfigs(); err != nil {
		return nil, err
	}
	if err := s.applyPatches(); err != nil {
		return nil, err
	}
	if debug.Parse() {
		debug.Logf("snapshot: %s: %d device(s), %d patch(es)", dir, len(s.Devices), len(s.Patched))
	}
	return s, nil
}

// Jobs converts the snapshot into the parse work list, one job per device.
func (s *Snapshot) Jobs() []parse.Job {
	jobs := make([]parse.Job, 0, len(s.Devices))
	for _, d := range s.Devices {
		jobs = append(jobs, parse.Job{Files: d.Files})
	}
	return jobs
}

func (s *Snapshot) loadConfigs() error {
	root := filepath.Join(s.Dir, configsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: no %s directory in %q", ErrSnapshot, configsDir, s.Dir)
		}
		return fmt.Errorf("could not read %q: %w", root, err)
	}
	for _, e := range entries {
		if hidden(e.Name()) {
			continue
		}
		if !e.IsDir() {
			text, err := os.ReadFile(filepath.Join(root, e.Name()))
			if err != nil {
				return fmt.Errorf("could not read %q: %w", filepath.Join(root, e.Name()), err)
			}
			s.Devices = append(s.Devices, Device{
				Name:  e.Name(),
				Files: map[string]string{path.Join(configsDir, e.Name()): string(text)},
			})
			continue
		}
		dev, err := s.loadDeviceDir(root, e.Name())
		if err != nil {
			return err
		}
		if len(dev.Files) == 0 {
			continue
		}
		s.Devices = append(s.Devices, dev)
	}
	if len(s.Devices) == 0 {
		return fmt.Errorf("%w: no configuration files under %q", ErrSnapshot, root)
	}
	return nil
}

func (s *Snapshot) loadDeviceDir(root, name string) (Device, error) {
	dev := Device{Name: name, Files: map[string]string{}}
	dir := filepath.Join(root, name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return dev, fmt.Errorf("could not read %q: %w", dir, err)
	}
	for _, e := range entries {
		if hidden(e.Name()) {
			continue
		}
		if e.IsDir() {
			return dev, fmt.Errorf("%w: unexpected directory %q under device %q", ErrSnapshot, e.Name(), name)
		}
		text, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return dev, fmt.Errorf("could not read %q: %w", filepath.Join(dir, e.Name()), err)
		}
		dev.Files[path.Join(configsDir, name, e.Name())] = string(text)
	}
	return dev, nil
}

func (s *Snapshot) applyPatches() error {
	root := filepath.Join(s.Dir, patchesDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("could not read %q: %w", root, err)
	}
	for _, e := range entries {
		if hidden(e.Name()) || e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), patchSuffix) {
			return fmt.Errorf("%w: %q is not named <config>%s", ErrPatch, e.Name(), patchSuffix)
		}
		if err := s.applyPatch(root, e.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Snapshot) applyPatch(root, name string) error {
	target := strings.TrimSuffix(name, patchSuffix)
	rel := path.Join(patchesDir, name)
	d, err := os.ReadFile(filepath.Join(root, name))
	if err != nil {
		return fmt.Errorf("could not read %q: %w", filepath.Join(root, name), err)
	}
	ops, err := jsonpatch.DecodePatch(d)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPatch, rel, err)
	}
	dev := s.device(target)
	if dev == nil {
		return fmt.Errorf("%w: %s targets missing config %q", ErrPatch, rel, path.Join(configsDir, target))
	}
	file, doc := dev.jsonMember()
	if file == "" {
		return fmt.Errorf("%w: %s: %q has no JSON member to patch", ErrPatch, rel, path.Join(configsDir, target))
	}
	out, err := ops.Apply([]byte(doc))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPatch, rel, err)
	}
	dev.Files[file] = string(out)
	s.Patched = append(s.Patched, rel)
	if debug.Parse() {
		debug.Logf("snapshot: applied %s to %s", rel, file)
	}
	return nil
}

func (s *Snapshot) device(name string) *Device {
	for i := range s.Devices {
		if s.Devices[i].Name == name {
			return &s.Devices[i]
		}
	}
	return nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
