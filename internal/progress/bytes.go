package progress

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	KiB = 1 << 10
	MiB = 1 << 20
	GiB = 1 << 30
	TiB = 1 << 40
)

// FormatBytes formats bytes as a human-readable string with binary units.
// Values of 100 or more in their unit drop the decimal.
func FormatBytes(b int64) string {
	switch {
	case b >= TiB:
		return formatUnit(float64(b)/TiB, "TiB")
	case b >= GiB:
		return formatUnit(float64(b)/GiB, "GiB")
	case b >= MiB:
		return formatUnit(float64(b)/MiB, "MiB")
	case b >= KiB:
		return formatUnit(float64(b)/KiB, "KiB")
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func formatUnit(v float64, unit string) string {
	if v >= 100 {
		return fmt.Sprintf("%.0f %s", v, unit)
	}
	return fmt.Sprintf("%.1f %s", v, unit)
}

// units maps size suffixes to multipliers. Longer suffixes come first so
// "MiB" is not read as "B".
var units = []struct {
	suffix string
	mult   int64
}{
	{"TiB", TiB}, {"GiB", GiB}, {"MiB", MiB}, {"KiB", KiB},
	{"TB", 1e12}, {"GB", 1e9}, {"MB", 1e6}, {"KB", 1e3}, {"kB", 1e3},
	{"B", 1},
}

// ParseBytes parses a human-readable byte string. Binary (KiB, MiB, ...) and
// decimal (KB, MB, ...) units are accepted, as is a plain byte count.
func ParseBytes(s string) (int64, error) {
	str := strings.TrimSpace(s)
	mult := int64(1)
	for _, u := range units {
		if strings.HasSuffix(str, u.suffix) {
			mult = u.mult
			str = strings.TrimSpace(strings.TrimSuffix(str, u.suffix))
			break
		}
	}

	value, err := strconv.ParseFloat(str, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid byte string: %q", s)
	}
	return int64(value * float64(mult)), nil
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
