package clogger

import (
	"fmt"
	"time"
)

// formatTimestamp renders t per the chosen DateFormat, honoring localTime
// and appending sub-second precision at the configured TimeUnit (§3 "Date
// format", §4.5 "full timestamp formatted per the chosen date format").
func formatTimestamp(t time.Time, df DateFormat, unit TimeUnit, localTime bool) string {
	if !localTime {
		t = t.UTC()
	} else {
		t = t.Local()
	}

	sub := subSecond(t, unit)

	if df == Universal {
		return formatUniversal(t, sub, localTime)
	}

	if sub == "" {
		return t.Format(df.goLayout())
	}

	// Split the reference layout at its trailing zone token so the
	// sub-second field can be spliced in between time and zone.
	layout := df.goLayout()
	secLayout, zoneLayout := layout[:len(layout)-df.zoneTokenLen()], layout[len(layout)-df.zoneTokenLen():]
	return t.Format(secLayout) + sub + t.Format(zoneLayout)
}

// formatUniversal renders the weekday/month-name timestamp ending in the
// literal word "UTC" plus the year. The zone offset is appended right
// after "UTC", with no separating colon, only when localTime is set --
// in UTC mode the rendered string never names a zone at all.
func formatUniversal(t time.Time, sub string, localTime bool) string {
	s := t.Format("Mon Jan 02 15:04:05") + sub + " UTC"
	if localTime {
		s += t.Format("-0700")
	}
	return s + t.Format(" 2006")
}

func subSecond(t time.Time, unit TimeUnit) string {
	switch unit {
	case UnitMillis:
		return fmt.Sprintf(".%03d", t.Nanosecond()/1e6)
	case UnitMicros:
		return fmt.Sprintf(".%06d", t.Nanosecond()/1e3)
	default:
		return ""
	}
}
