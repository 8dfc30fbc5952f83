package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/therealityreport/socializer/internal/domain"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return tm
}

func TestClassify_MatchesEasternAirTimeScenario(t *testing.T) {
	eastern := time.FixedZone("EST", -5*60*60)
	airTime := mustParse(t, "2024-01-01T01:00:00Z")

	cases := []struct {
		name     string
		created  string
		expected domain.TimeWindow
	}{
		{"live near broadcast", "2024-01-01T02:00:00Z", domain.WindowLive},
		{"live pacific-shifted", "2024-01-01T04:30:00Z", domain.WindowLive},
		{"day of", "2024-01-01T15:00:00Z", domain.WindowDayOf},
		{"after", "2024-01-03T01:00:00Z", domain.WindowAfter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(mustParse(t, tc.created), &airTime, eastern)
			require.Equal(t, tc.expected, got)
		})
	}
}

func TestClassify_NullWhenNoAirTime(t *testing.T) {
	got := Classify(mustParse(t, "2024-01-01T02:00:00Z"), nil, time.UTC)
	require.Equal(t, domain.WindowNone, got)
}
