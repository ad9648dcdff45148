package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScheduleIntervals(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 5, 1, 10, 3, 0, 0, time.UTC)
	cases := map[string]time.Duration{
		"":              10 * time.Minute,
		"10m":           10 * time.Minute,
		"1h30m":         90 * time.Minute,
		"00:10":         10 * time.Minute,
		"02:30":         150 * time.Minute,
		"every:5m":      5 * time.Minute,
		"interval:1:00": time.Hour,
	}
	for raw, want := range cases {
		s, err := ParseSchedule(raw, time.UTC)
		require.NoError(t, err, raw)
		assert.Equal(t, now.Add(want), s.Next(now), raw)
	}
}

func TestParseScheduleCron(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 5, 1, 10, 3, 0, 0, time.UTC)
	cases := map[string]time.Time{
		"*/10 * * * *":    time.Date(2026, 5, 1, 10, 10, 0, 0, time.UTC),
		"@hourly":         time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC),
		"cron:0 12 * * *": time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		"30 */5 * * * *":  time.Date(2026, 5, 1, 10, 5, 30, 0, time.UTC),
		"@every 15m":      now.Add(15 * time.Minute),
	}
	for raw, want := range cases {
		s, err := ParseSchedule(raw, time.UTC)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(s.Next(now)), "%s: got %s want %s", raw, s.Next(now), want)
	}
}

func TestParseScheduleTimezone(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+7", 7*3600)
	s, err := ParseSchedule("0 9 * * *", loc)
	require.NoError(t, err)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) // 07:00 local
	assert.True(t, time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC).Equal(s.Next(now)))
}

func TestParseScheduleErrors(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"soon", "-5m", "0s", "00:00", "01:75", "cron:", "* * *", "every:abc", "0 0 30 2 *", "cron:0 0 31 4 *"} {
		_, err := ParseSchedule(raw, time.UTC)
		assert.Error(t, err, raw)
	}
}

func TestScheduleString(t *testing.T) {
	t.Parallel()
	s, err := ParseSchedule("10m", nil)
	require.NoError(t, err)
	assert.Equal(t, "every 10m0s", s.String())
	s, err = ParseSchedule("@hourly", nil)
	require.NoError(t, err)
	assert.Equal(t, "cron(@hourly)", s.String())
}

func TestParseScheduleRejectsCronThatNeverFires(t *testing.T) {
	t.Parallel()
	_, err := ParseSchedule("0 0 30 2 *", time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never fires")
}
