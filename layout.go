package clogger

import (
	"strings"
	"time"
)

// Layout selects how a record is rendered (§3 "Layout").
type Layout int

const (
	// Dated emits the full formatted record: timestamp, level, ident,
	// source location, pid/tid, color, message. The zero value, so a
	// Config left unset at its documented default (§4.7 "layout [Dated]").
	Dated Layout = iota
	// Plain emits the raw payload with only a minute-resolution date
	// prefix, used to pick the rolling file — no level, no color, no ident.
	Plain
)

var layoutName = map[Layout]string{Plain: "PLAIN", Dated: "DATED"}
var layoutByName = map[string]Layout{"PLAIN": Plain, "DATED": Dated}

func (l Layout) String() string { return layoutName[l] }

func LayoutToString(l Layout) (string, bool) {
	s, ok := layoutName[l]
	return s, ok
}

func LayoutFromString(s string) (Layout, bool) {
	l, ok := layoutByName[strings.ToUpper(strings.TrimSpace(s))]
	return l, ok
}

// DateFormat is one of the six named timestamp encodings (§3 "Date format").
type DateFormat int

const (
	RFC3339 DateFormat = iota
	ISO8601
	RFC2822
	Universal
	Numeric1 // YYYYMMDDhhmmss±zzzz
	Numeric2 // YYYYMMDD-hhmmss±zzzz
)

var dateFormatName = map[DateFormat]string{
	RFC3339:   "RFC3339",
	ISO8601:   "ISO8601",
	RFC2822:   "RFC2822",
	Universal: "UNIVERSAL",
	Numeric1:  "NUMERIC1",
	Numeric2:  "NUMERIC2",
}

var dateFormatByName = func() map[string]DateFormat {
	m := make(map[string]DateFormat, len(dateFormatName))
	for k, v := range dateFormatName {
		m[v] = k
	}
	return m
}()

func (d DateFormat) String() string { return dateFormatName[d] }

func DateFormatToString(d DateFormat) (string, bool) {
	s, ok := dateFormatName[d]
	return s, ok
}

func DateFormatFromString(s string) (DateFormat, bool) {
	d, ok := dateFormatByName[strings.ToUpper(strings.TrimSpace(s))]
	return d, ok
}

// layout reference forms, Go's reference-date based. RFC3339 and ISO8601
// share a colon-split numeric zone offset and never collapse to a bare "Z"
// at UTC (clogger.c renders both via the same "%.*s:%.*s" timezonefmt
// split) -- they differ only in the date/time separator, space vs 'T'.
// Universal has no entry here: its "UTC" suffix is a literal word, not a
// zone substitution, and its offset is only ever present in local-time
// mode, so it is rendered by formatUniversal instead of a static layout.
const (
	layoutRFC3339  = "2006-01-02 15:04:05-07:00"
	layoutISO8601  = "2006-01-02T15:04:05-07:00"
	layoutRFC2822  = "Mon, 02 Jan 2006 15:04:05 -0700"
	layoutNumeric1 = "20060102150405-0700"
	layoutNumeric2 = "20060102-150405-0700"
)

// zoneTokenLen is the length of the trailing zone-offset token in
// goLayout()'s pattern string, used to splice a sub-second field in
// before the zone rather than at the end of the rendered output.
func (d DateFormat) zoneTokenLen() int {
	switch d {
	case RFC3339, ISO8601:
		return len("-07:00")
	default:
		return len("-0700")
	}
}

// goLayout returns the Go reference-time layout for d. Universal is not
// expressible this way (see formatUniversal) and is not expected to reach
// this method in normal use.
func (d DateFormat) goLayout() string {
	switch d {
	case RFC3339:
		return layoutRFC3339
	case ISO8601:
		return layoutISO8601
	case RFC2822:
		return layoutRFC2822
	case Numeric1:
		return layoutNumeric1
	case Numeric2:
		return layoutNumeric2
	default:
		return layoutRFC3339
	}
}

// RollingTime controls the resolution of the "date-minute" string used to
// pick the active rolling-file name (§3 "Rolling-time unit").
type RollingTime int

const (
	RollNone RollingTime = iota
	Roll1Min
	Roll5Min
	Roll10Min
	Roll30Min
	RollHour
	RollDay
	RollMonth
	RollYear
)

var rollingTimeName = map[RollingTime]string{
	RollNone:  "NONE",
	Roll1Min:  "1MIN",
	Roll5Min:  "5MIN",
	Roll10Min: "10MIN",
	Roll30Min: "30MIN",
	RollHour:  "HOUR",
	RollDay:   "DAY",
	RollMonth: "MONTH",
	RollYear:  "YEAR",
}

var rollingTimeByName = func() map[string]RollingTime {
	m := make(map[string]RollingTime, len(rollingTimeName)*2)
	for k, v := range rollingTimeName {
		m[v] = k
	}
	// original clogger source-code aliases (rollingfile.c: "min","5m","mon"...)
	m["MIN"] = Roll1Min
	m["5M"] = Roll5Min
	m["10M"] = Roll10Min
	m["30M"] = Roll30Min
	m["MON"] = RollMonth
	return m
}()

func (r RollingTime) String() string { return rollingTimeName[r] }

func RollingTimeToString(r RollingTime) (string, bool) {
	s, ok := rollingTimeName[r]
	return s, ok
}

func RollingTimeFromString(s string) (RollingTime, bool) {
	r, ok := rollingTimeByName[strings.ToUpper(strings.TrimSpace(s))]
	return r, ok
}

// dateMinuteLayout returns the time.Format layout used to compute the
// "date-minute" string at the given rolling-time resolution. An empty
// string means the rolling-time policy is size-only (RollNone).
func (r RollingTime) dateMinuteLayout() string {
	switch r {
	case Roll1Min, Roll5Min, Roll10Min, Roll30Min:
		return "200601021504"
	case RollHour:
		return "2006010215"
	case RollDay:
		return "20060102"
	case RollMonth:
		return "200601"
	case RollYear:
		return "2006"
	default:
		return ""
	}
}

// dateMinute formats t (already in the target timezone) into the
// date-minute string used both as a file-name component and as the quick
// comparator deciding whether a new rolling file must be opened (§4.3).
func (r RollingTime) dateMinute(t time.Time) string {
	switch r {
	case Roll5Min:
		t = t.Truncate(5 * time.Minute)
	case Roll10Min:
		t = t.Truncate(10 * time.Minute)
	case Roll30Min:
		t = t.Truncate(30 * time.Minute)
	}
	layout := r.dateMinuteLayout()
	if layout == "" {
		return ""
	}
	return t.Format(layout)
}
