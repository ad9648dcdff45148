package watch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule is used when no schedule is configured.
const DefaultSchedule = "10m"

// Schedule decides when the next pass starts.
type Schedule interface {
	// Next returns the start of the next pass after now.
	Next(now time.Time) time.Time
	String() string
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

var reHHMM = regexp.MustCompile(`^(\d{1,3}):(\d{2})$`)

// ParseSchedule accepts:
//   - a fixed interval: "10m", "1h30m", "00:10" (HH:MM)
//   - a cron expression: "*/10 * * * *", "0 */5 * * * *", "@hourly", "@every 10m"
//
// The prefixes "cron:", "interval:" and "every:" force one interpretation.
// loc applies to cron expressions; nil means time.Local.
func ParseSchedule(raw string, loc *time.Location) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		s = DefaultSchedule
	}
	if loc == nil {
		loc = time.Local
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]), loc)
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(strings.TrimSpace(s[len("interval:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseInterval(strings.TrimSpace(s[len("every:"):]))
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return parseCron(s, loc)
	default:
		return parseInterval(s)
	}
}

type cronSchedule struct {
	expr  string
	sched cron.Schedule
	loc   *time.Location
}

func parseCron(expr string, loc *time.Location) (Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty cron expression")
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	// e.g. "0 0 30 2 *": parses, but Next is always the zero time
	if sched.Next(time.Now().In(loc)).IsZero() {
		return nil, fmt.Errorf("cron %q never fires", expr)
	}
	return cronSchedule{expr: expr, sched: sched, loc: loc}, nil
}

func (c cronSchedule) Next(now time.Time) time.Time { return c.sched.Next(now.In(c.loc)) }
func (c cronSchedule) String() string               { return "cron(" + c.expr + ")" }

type intervalSchedule time.Duration

func parseInterval(v string) (Schedule, error) {
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return nil, fmt.Errorf("invalid minutes in %q", v)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return nil, fmt.Errorf("interval must be > 0")
		}
		return intervalSchedule(d), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q (use a duration like '10m', HH:MM like '00:10', or cron like '*/10 * * * *')", v)
	}
	if d <= 0 {
		return nil, fmt.Errorf("interval must be > 0")
	}
	return intervalSchedule(d), nil
}

func (i intervalSchedule) Next(now time.Time) time.Time { return now.Add(time.Duration(i)) }
func (i intervalSchedule) String() string               { return "every " + time.Duration(i).String() }

// Every returns a fixed interval schedule.
func Every(d time.Duration) Schedule { return intervalSchedule(d) }
