package teltonika

import (
	"regexp"
	"strings"
)

// CommandGetVer pide firmware y modelo; la respuesta llega como Codec 12.
const CommandGetVer = "getver"

var (
	reVer = regexp.MustCompile(`(?i)\bver:([^\s]+(?:\s+Rev:?\s*\d+)?)`)
	reHw  = regexp.MustCompile(`(?i)\bhw:([A-Za-z0-9_-]+)`)
)

// ParseVersion extrae firmware y modelo de una respuesta a getver, p.ej.
// "Ver:03.27.07_00 GPS:AXN_5.10_3333 Hw:FMB920 Mod:13 IMEI:...".
func ParseVersion(text string) (firmware, model string) {
	if m := reVer.FindStringSubmatch(text); len(m) > 1 {
		firmware = strings.TrimSpace(m[1])
	}
	if m := reHw.FindStringSubmatch(text); len(m) > 1 {
		model = strings.TrimSpace(m[1])
	}
	return firmware, model
}
