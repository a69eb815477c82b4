package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// DefaultTick polls once a minute.
const DefaultTick = "@every 1m"

// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
var tickParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseTick parses the tick cadence. Empty means DefaultTick.
//
// Accepted forms: "@every 1m", "@every 30s", "* * * * *" (minute boundaries).
func ParseTick(raw string) (cron.Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		s = DefaultTick
	}
	sched, err := tickParser.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("tick: invalid schedule %q: %w", raw, err)
	}
	return sched, nil
}
