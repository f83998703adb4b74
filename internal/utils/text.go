package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	spaceRe       = regexp.MustCompile(`\s+`)
	dollarRe      = regexp.MustCompile(`\$\s*([0-9][0-9,]*)(?:[.,]([0-9]{2}))?`)
	wordMoneyRe   = regexp.MustCompile(`(?i)\b([0-9][0-9,]*)(?:\.([0-9]{2}))?\s*(?:dollars|bucks)\b`)
	trailingDolRe = regexp.MustCompile(`\b([0-9][0-9,]*)(?:\.([0-9]{2}))?\$`)
	clockRe       = regexp.MustCompile(`(?i)\b([0-9]{1,2})(?::([0-9]{2}))?\s*(am|pm)\b`)
	clock24Re     = regexp.MustCompile(`\b([01]?[0-9]|2[0-3]):([0-5][0-9])\b`)
)

// CleanText strips control characters and collapses whitespace.
func CleanText(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(b.String(), " "))
}

// NormalizeToken lowers and trims a candidate control token. Exact
// equality against the closed token set happens after this and nothing
// else; no fuzzy expansion.
func NormalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseMoneyCents extracts the first money amount from text.
func ParseMoneyCents(text string) (int64, bool) {
	for _, re := range []*regexp.Regexp{dollarRe, trailingDolRe, wordMoneyRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			whole := strings.ReplaceAll(m[1], ",", "")
			n, err := strconv.ParseInt(whole, 10, 64)
			if err != nil {
				continue
			}
			cents := n * 100
			if m[2] != "" {
				frac, err := strconv.ParseInt(m[2], 10, 64)
				if err != nil {
					continue
				}
				cents += frac
			}
			return cents, true
		}
	}
	return 0, false
}

// FormatMoney renders cents the way replies display money.
func FormatMoney(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}

// ParseClockTime finds a time of day in text ("5pm", "5:30 pm",
// "17:30") anchored to ref's date.
func ParseClockTime(text string, ref time.Time) (time.Time, bool) {
	if m := clockRe.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			return time.Time{}, false
		}
		if strings.EqualFold(m[3], "pm") && hour != 12 {
			hour += 12
		}
		if strings.EqualFold(m[3], "am") && hour == 12 {
			hour = 0
		}
		return time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location()), true
	}
	if m := clock24Re.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		return time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location()), true
	}
	return time.Time{}, false
}

// ParseRelativeDate resolves "yesterday"/"today" mentions; defaults to
// today.
func ParseRelativeDate(text string, now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if strings.Contains(strings.ToLower(text), "yesterday") {
		return day.AddDate(0, 0, -1)
	}
	return day
}
