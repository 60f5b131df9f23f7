package output

import (
	"strconv"
	"strings"
	"time"
)

// formatLatency picks the largest unit that keeps the value readable.
func formatLatency(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return strconv.FormatInt(d.Microseconds(), 10) + "μs"
	case d < time.Second:
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
}

// formatLatencyMs renders milliseconds with fewer decimals as values grow.
func formatLatencyMs(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	prec := 0
	switch {
	case ms < 1:
		prec = 2
	case ms < 10:
		prec = 1
	}
	return strconv.FormatFloat(ms, 'f', prec, 64)
}

// formatNumber groups digits in thousands: 1234567 -> "1,234,567".
func formatNumber(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= 3 {
		return sign + digits
	}

	var b strings.Builder
	b.WriteString(sign)
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
