package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// NormalizeColor parses "#rgb", "#rrggbb", "rgb(r, g, b)", or "rgba(r, g, b, a)" and returns "#rrggbb". Alpha is applied by blending over black, since terminals
// have no translucent backgrounds.
func NormalizeColor(s string) (string, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(s)
		if err != nil {
			return "", fmt.Errorf("invalid hex color %q", s)
		}
		return c.Hex(), nil
	}

	var args string
	var wantAlpha bool
	switch {
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		args, wantAlpha = s[len("rgba("):len(s)-1], true
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		args = s[len("rgb(") : len(s)-1]
	default:
		return "", fmt.Errorf("unsupported color %q (want #rrggbb, rgb(), or rgba())", s)
	}

	parts := strings.Split(args, ",")
	if (wantAlpha && len(parts) != 4) || (!wantAlpha && len(parts) != 3) {
		return "", fmt.Errorf("invalid color %q: wrong number of components", s)
	}

	var rgb [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return "", fmt.Errorf("invalid color %q: component %d must be an integer 0-255", s, i+1)
		}
		rgb[i] = float64(v) / 255
	}
	c := colorful.Color{R: rgb[0], G: rgb[1], B: rgb[2]}

	if wantAlpha {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return "", fmt.Errorf("invalid color %q: alpha must be between 0 and 1", s)
		}
		c = c.BlendRgb(colorful.Color{}, 1-a)
	}
	return c.Clamped().Hex(), nil
}
