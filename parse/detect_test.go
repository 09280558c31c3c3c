package parse

import (
	"testing"

	"github.com/remora-net/remora/format"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		text string
		hint format.Format
		want format.Format
	}{
		{name: "empty", text: "", want: format.EmptyFormat},
		{name: "whitespace", text: " \n\t\n", want: format.EmptyFormat},
		{name: "ignore marker", text: "!remora-ignore\nhostname r1\n", want: format.IgnoredFormat},
		{name: "rancid header", text: "RANCID-CONTENT-TYPE: cisco\nhostname r1\n", want: format.IgnoredFormat},
		{name: "ignore beats hint", text: "!remora-ignore\n", hint: format.IOSFormat, want: format.IgnoredFormat},
		{name: "hint wins", text: "something unrecognizable\n", hint: format.IOSFormat, want: format.IOSFormat},
		{name: "ios hostname", text: "hostname r1\ninterface GigabitEthernet0/0\n", want: format.IOSFormat},
		{name: "ios access-list only", text: "access-list 101 permit ip any any\n", want: format.IOSFormat},
		{name: "junos braces", text: "system {\n    host-name r1;\n}\n", want: format.JunosFormat},
		{name: "flat junos host-name", text: "set system host-name j1\n", want: format.FlatJunosFormat},
		{name: "flat junos version", text: "set version 12.1X47\nset system host-name j1\n", want: format.FlatJunosFormat},
		{name: "configdb", text: `{"DEVICE_METADATA": {"localhost": {"hostname": "s1"}}}`, want: format.ConfigDBFormat},
		{name: "f5", text: "#TMSH-VERSION: 15.1.0\nltm node /Common/n1 {\n}\n", want: format.F5Format},
		{name: "vyos beats flat junos", text: "set system login user vyos\nset system host-name v1\n", want: format.VyOSFormat},
		{name: "garbage", text: "lorem ipsum dolor\n", want: format.UnknownFormat},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.text, tt.hint); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestGuessHostname(t *testing.T) {
	tests := []struct{ in, want string }{
		{"configs/R1.cfg", "r1"},
		{"leaf-1.conf", "leaf-1"},
		{"Spine2.txt", "spine2"},
		{"plain", "plain"},
		{"a/b/r3.cfg.bak", "r3.cfg.bak"},
	}
	for _, tt := range tests {
		if got := GuessHostname(tt.in); got != tt.want {
			t.Errorf("GuessHostname(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
