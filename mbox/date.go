package mbox

import (
	"net/mail"
	"strconv"
	"strings"
	"time"
)

// dateLayouts covers common compatibility forms beyond what
// net/mail.ParseDate already accepts: two-digit years and common
// non-standard zone abbreviations seen in the wild (mailers that predate
// RFC 5322's mandatory +/-HHMM numeric zone).
var dateLayouts = []string{
	"Mon, 2 Jan 06 15:04:05 -0700",
	"Mon, 2 Jan 06 15:04:05 MST",
	"2 Jan 06 15:04:05 -0700",
	"2 Jan 06 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	"Mon, 2 Jan 2006 15:04 MST",
}

// legacyZones maps non-standard zone names encountered in old archives
// (Google Takeout exports routinely contain mail from the 1990s) to fixed
// UTC offsets, since Go's time package only resolves zone abbreviations it
// can find in the local zoneinfo database.
var legacyZones = map[string]int{
	"PST": -8 * 3600, "PDT": -7 * 3600,
	"MST": -7 * 3600, "MDT": -6 * 3600,
	"CST": -6 * 3600, "CDT": -5 * 3600,
	"EST": -5 * 3600, "EDT": -4 * 3600,
	"UT": 0, "GMT": 0, "Z": 0,
	"JST": 9 * 3600,
}

// ParseDate is the exported entry point other packages use to parse a Date
// header value; see parseDate for the compatibility rules applied.
func ParseDate(raw string) (time.Time, bool) { return parseDate(raw) }

// parseDate parses a Date header value, accepting RFC 5322/2822/822 plus
// the compatibility set described above. ok is false if nothing could be
// made of raw, in which case the caller records a null date and sets the
// record's parse-error flag.
func parseDate(raw string) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for zone, off := range legacyZones {
		// Only the zone the value names: time.Parse (and mail.ParseDate)
		// give any abbreviation they cannot resolve a zero offset.
		if !strings.HasSuffix(raw, " "+zone) {
			continue
		}
		loc := time.FixedZone(zone, off)
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
				return t.UTC(), true
			}
		}
	}
	if t, err := mail.ParseDate(raw); err == nil {
		return t.UTC(), true
	}
	if t, ok := parseNumericZoneTwoDigitYear(raw); ok {
		return t, true
	}
	return time.Time{}, false
}

// parseNumericZoneTwoDigitYear handles "Mon, 2 Jan 06 15:04:05 +0000"
// forms directly, since Go's reference layout "06" for a two-digit year
// combined with a numeric zone is already covered by dateLayouts above;
// this second pass retries with the weekday name stripped, for the rarer
// case of a missing or wrong day-of-week prefix that mail.ParseDate
// rejects outright.
func parseNumericZoneTwoDigitYear(raw string) (time.Time, bool) {
	if idx := strings.IndexByte(raw, ','); idx >= 0 && idx < 5 {
		raw = strings.TrimSpace(raw[idx+1:])
	}
	fields := strings.Fields(raw)
	if len(fields) < 5 {
		return time.Time{}, false
	}
	year := fields[2]
	if len(year) == 2 {
		if n, err := strconv.Atoi(year); err == nil {
			century := 1900
			if n < 70 {
				century = 2000
			}
			fields[2] = strconv.Itoa(century + n)
			raw = strings.Join(fields, " ")
			if t, err := time.Parse("2 Jan 2006 15:04:05 -0700", raw); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}
