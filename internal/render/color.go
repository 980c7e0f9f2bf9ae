package render

import (
	"strconv"
	"strings"

	"github.com/swms-manager/internal/swms"
)

var (
	brandBlue = swms.RGB{R: 30, G: 64, B: 175}
	alertRed  = swms.RGB{R: 220, G: 38, B: 38}
	mutedGray = swms.RGB{R: 107, G: 114, B: 128}
	white     = swms.RGB{R: 255, G: 255, B: 255}
	black     = swms.RGB{}
)

// ParseHex reads "#rrggbb"; anything else yields the default brand blue.
func ParseHex(hex string) swms.RGB {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 {
		return brandBlue
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return brandBlue
	}
	return swms.RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
