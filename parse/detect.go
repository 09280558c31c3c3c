package parse

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/remora-net/remora/debug"
	"github.com/remora-net/remora/format"
)

var (
	reBlank   = regexp.MustCompile(`(?s)^\s*$`)
	reIgnored = regexp.MustCompile(`(?mi)^\s*(rancid-content-type:|!\s*remora-ignore)`)

	reFlatJunos = regexp.MustCompile(`(?m)^set (version|system host-name) `)
	reJunos     = regexp.MustCompile(`(?m)^(system|interfaces|firewall|routing-options|policy-options) \{`)
	reIOS       = regexp.MustCompile(`(?m)^(hostname|interface|ip access-list|access-list|ip route|ip nat) `)
	reF5        = regexp.MustCompile(`(?m)^#TMSH-VERSION`)
	reVyOS      = regexp.MustCompile(`(?m)^set system (login|config-management|ntp server)`)

	reHostSuffix = regexp.MustCompile(`\.(cfg|conf|txt)$`)
)

// DetectFormat sniffs the syntax family of a configuration text. Empty and
// ignore-marked files win over everything, then a caller hint, then content
// markers. Content nobody recognizes stays UnknownFormat.
func DetectFormat(text string, hint format.Format) format.Format {
	f := detect(text, hint)
	if debug.Detect() {
		debug.Logf("detect: %d bytes, hint %s -> %s", len(text), hint, f)
	}
	return f
}

func detect(text string, hint format.Format) format.Format {
	if reBlank.MatchString(text) {
		return format.EmptyFormat
	}
	if reIgnored.MatchString(text) {
		return format.IgnoredFormat
	}
	if hint != format.UnknownFormat {
		return hint
	}
	if strings.HasPrefix(strings.TrimSpace(text), "{") && strings.Contains(text, "DEVICE_METADATA") {
		return format.ConfigDBFormat
	}
	if reF5.MatchString(text) {
		return format.F5Format
	}
	// vyos before junos-flat: both emit set-lines, vyos has login blocks
	// that junos spells differently.
	if reVyOS.MatchString(text) {
		return format.VyOSFormat
	}
	if reFlatJunos.MatchString(text) {
		return format.FlatJunosFormat
	}
	if reJunos.MatchString(text) {
		return format.JunosFormat
	}
	if reIOS.MatchString(text) {
		return format.IOSFormat
	}
	return format.UnknownFormat
}

// GuessHostname derives a hostname from a file path for configs that never
// set one: base name, lowercased, with a single .cfg/.conf/.txt suffix
// stripped.
func GuessHostname(filename string) string {
	base := strings.ToLower(filepath.Base(filename))
	return reHostSuffix.ReplaceAllString(base, "")
}
