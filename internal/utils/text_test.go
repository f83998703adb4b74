package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	require.Equal(t, "spent $45 at Rona", CleanText("  spent\t$45\n at  Rona  "))
	require.Equal(t, "", CleanText("\t \n"))
}

func TestNormalizeToken(t *testing.T) {
	require.Equal(t, "yes", NormalizeToken(" Yes "))
	require.Equal(t, "change_job", NormalizeToken("CHANGE_JOB"))
}

func TestParseMoneyCents(t *testing.T) {
	cases := []struct {
		text  string
		cents int64
		ok    bool
	}{
		{"spent $45 on screws", 4500, true},
		{"$ 45.99 at rona", 4599, true},
		{"received 1,200 dollars", 120000, true},
		{"got 50 bucks from mike", 5000, true},
		{"paid 54.20$ cash", 5420, true},
		{"clock in", 0, false},
		{"job 12", 0, false},
	}
	for _, tc := range cases {
		cents, ok := ParseMoneyCents(tc.text)
		require.Equal(t, tc.ok, ok, tc.text)
		if tc.ok {
			require.Equal(t, tc.cents, cents, tc.text)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	require.Equal(t, "$45.00", FormatMoney(4500))
	require.Equal(t, "$0.99", FormatMoney(99))
}

func TestParseClockTime(t *testing.T) {
	ref := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	got, ok := ParseClockTime("clock out at 5pm", ref)
	require.True(t, ok)
	require.Equal(t, 17, got.Hour())
	require.Equal(t, ref.Day(), got.Day())

	got, ok = ParseClockTime("finished at 5:30 pm", ref)
	require.True(t, ok)
	require.Equal(t, 17, got.Hour())
	require.Equal(t, 30, got.Minute())

	got, ok = ParseClockTime("left at 17:45", ref)
	require.True(t, ok)
	require.Equal(t, 17, got.Hour())
	require.Equal(t, 45, got.Minute())

	got, ok = ParseClockTime("12am start", ref)
	require.True(t, ok)
	require.Equal(t, 0, got.Hour())

	_, ok = ParseClockTime("no time here", ref)
	require.False(t, ok)
}

func TestParseRelativeDate(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	got := ParseRelativeDate("spent $20 yesterday", now)
	require.Equal(t, 9, got.Day())
	require.Equal(t, 0, got.Hour())

	got = ParseRelativeDate("spent $20 today", now)
	require.Equal(t, 10, got.Day())
}
