package light

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// HueSaturation converts "#RRGGBB" into the bulb's hue (0..360) and
// saturation (0..100). Value is dropped; brightness is set separately.
func HueSaturation(hex string) (hue, sat int, err error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) != 6 {
		return 0, 0, fmt.Errorf("invalid hex colour: %q", hex)
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hex colour: %q", hex)
	}

	r := int(v >> 16 & 0xFF)
	g := int(v >> 8 & 0xFF)
	b := int(v & 0xFF)

	h, sf := rgbToHS(r, g, b)

	return int(h * 360), int(sf * 100), nil
}

// rgbToHS is the hue/saturation half of the usual RGB->HSV transform.
// h is in [0,1).
func rgbToHS(r, g, b int) (h, s float64) {
	maxc := max(r, g, b)
	minc := min(r, g, b)
	if maxc == minc {
		return 0, 0
	}

	delta := float64(maxc - minc)
	s = delta / float64(maxc)

	rc := float64(maxc-r) / delta
	gc := float64(maxc-g) / delta
	bc := float64(maxc-b) / delta

	switch maxc {
	case r:
		h = bc - gc
	case g:
		h = 2 + rc - bc
	default:
		h = 4 + gc - rc
	}

	h = math.Mod(h/6, 1)
	if h < 0 {
		h += 1
	}

	return h, s
}

func clampBrightness(v int) int {
	return max(1, min(100, v))
}
