package durations

import (
	"strconv"
	"strings"
	"time"
)

var units = []struct {
	name string
	val  time.Duration
}{
	{"day", 24 * time.Hour},
	{"hour", time.Hour},
	{"minute", time.Minute},
	{"second", time.Second},
}

// NiceDuration renders dur for people, e.g. "1 hour 30 minutes". Anything under a second is dropped.
func NiceDuration(dur time.Duration) string {
	var parts []string
	for _, curr := range units {
		amt := int(dur / curr.val)
		if amt <= 0 {
			continue
		}
		dur -= time.Duration(amt) * curr.val

		part := strconv.Itoa(amt) + " " + curr.name
		if amt != 1 {
			part += "s"
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		return "0 seconds"
	}

	return strings.Join(parts, " ")
}
