package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/remora-net/remora/parse"
)

func write(t *testing.T, dir, name, text string) {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
}

const snapConfigDB = `{
    "DEVICE_METADATA": {"localhost": {"hostname": "sonic1"}},
    "INTERFACE": {"Ethernet0": {}, "Ethernet0|10.0.0.1/31": {}}
}
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "configs/r1.cfg", "hostname r1\n")
	write(t, dir, "configs/.hidden", "junk")
	write(t, dir, "configs/sonic1/config_db.json", snapConfigDB)
	write(t, dir, "configs/sonic1/frr.conf", "! frr\n")
	if err := os.MkdirAll(filepath.Join(dir, "configs", "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	s, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Devices) != 2 {
		t.Fatalf("devices: %+v", s.Devices)
	}
	if s.Devices[0].Name != "r1.cfg" || s.Devices[1].Name != "sonic1" {
		t.Errorf("device names: %q %q", s.Devices[0].Name, s.Devices[1].Name)
	}
	if _, ok := s.Devices[0].Files["configs/r1.cfg"]; !ok {
		t.Errorf("r1 files: %+v", s.Devices[0].Files)
	}
	if len(s.Devices[1].Files) != 2 {
		t.Errorf("sonic1 files: %+v", s.Devices[1].Files)
	}

	results := parse.Run(context.Background(), s.Jobs(), 2)
	if len(results) != 2 {
		t.Fatalf("results: %d", len(results))
	}
	if results[0].Hostname != "r1" || results[1].Hostname != "sonic1" {
		t.Errorf("hostnames: %q %q", results[0].Hostname, results[1].Hostname)
	}
}

func TestLoadPatch(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "configs/sonic1/config_db.json", snapConfigDB)
	write(t, dir, "patches/sonic1.patch.json",
		`[{"op": "replace", "path": "/DEVICE_METADATA/localhost/hostname", "value": "sonic9"}]`)

	s, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Patched) != 1 || s.Patched[0] != "patches/sonic1.patch.json" {
		t.Errorf("patched: %+v", s.Patched)
	}
	if !strings.Contains(s.Devices[0].Files["configs/sonic1/config_db.json"], "sonic9") {
		t.Errorf("patch not applied: %s", s.Devices[0].Files["configs/sonic1/config_db.json"])
	}
	res := parse.ParseJob(s.Jobs()[0])
	if res.Hostname != "sonic9" {
		t.Errorf("hostname: %q, warnings %+v", res.Hostname, res.Warnings)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
		want  error
	}{
		{
			name:  "no configs directory",
			setup: func(t *testing.T, dir string) {},
			want:  ErrSnapshot,
		},
		{
			name: "no configuration files",
			setup: func(t *testing.T, dir string) {
				if err := os.MkdirAll(filepath.Join(dir, "configs"), 0o755); err != nil {
					t.Fatal(err)
				}
			},
			want: ErrSnapshot,
		},
		{
			name: "nested device directory",
			setup: func(t *testing.T, dir string) {
				write(t, dir, "configs/sonic1/extra/x.json", "{}")
			},
			want: ErrSnapshot,
		},
		{
			name: "misnamed patch",
			setup: func(t *testing.T, dir string) {
				write(t, dir, "configs/r1.cfg", "hostname r1\n")
				write(t, dir, "patches/r1.json", "[]")
			},
			want: ErrPatch,
		},
		{
			name: "bad patch document",
			setup: func(t *testing.T, dir string) {
				write(t, dir, "configs/sonic1/config_db.json", snapConfigDB)
				write(t, dir, "patches/sonic1.patch.json", "{")
			},
			want: ErrPatch,
		},
		{
			name: "missing target",
			setup: func(t *testing.T, dir string) {
				write(t, dir, "configs/r1.cfg", "hostname r1\n")
				write(t, dir, "patches/ghost.patch.json", "[]")
			},
			want: ErrPatch,
		},
		{
			name: "non-json target",
			setup: func(t *testing.T, dir string) {
				write(t, dir, "configs/r1.cfg", "hostname r1\n")
				write(t, dir, "patches/r1.cfg.patch.json", "[]")
			},
			want: ErrPatch,
		},
		{
			name: "patch does not apply",
			setup: func(t *testing.T, dir string) {
				write(t, dir, "configs/sonic1/config_db.json", snapConfigDB)
				write(t, dir, "patches/sonic1.patch.json",
					`[{"op": "replace", "path": "/NOPE/x", "value": 1}]`)
			},
			want: ErrPatch,
		},
	}
	for _, tt := range tests {
		dir := t.TempDir()
		tt.setup(t, dir)
		_, err := Load(dir)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
}
