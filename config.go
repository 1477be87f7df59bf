package clogger

import "strings"

// Appender is a bitset selecting which sinks a logger dispatches to (§4.7).
type Appender int

const (
	AppenderStdout Appender = 1 << iota
	AppenderSyslog
	AppenderRollingFile
	AppenderShmmap
)

var appenderBits = []struct {
	bit  Appender
	name string
}{
	{AppenderStdout, "STDOUT"},
	{AppenderSyslog, "SYSLOG"},
	{AppenderRollingFile, "ROLLINGFILE"},
	{AppenderShmmap, "SHMMAP"},
}

// AppenderToString renders the bitset as a comma-separated, order-stable
// list of its set bits, e.g. "STDOUT,SYSLOG".
func AppenderToString(a Appender) string {
	var parts []string
	for _, e := range appenderBits {
		if a&e.bit != 0 {
			parts = append(parts, e.name)
		}
	}
	return strings.Join(parts, ",")
}

// AppenderFromString parses a comma-separated bitset name list,
// case-insensitive, ignoring surrounding whitespace around each token.
// An unknown token yields ok == false.
func AppenderFromString(s string) (a Appender, ok bool) {
	ok = true
	if strings.TrimSpace(s) == "" {
		return 0, true
	}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.ToUpper(strings.TrimSpace(tok))
		found := false
		for _, e := range appenderBits {
			if e.name == tok {
				a |= e.bit
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return a, ok
}

// TimeUnit is the sub-second precision used when rendering a Dated
// timestamp (§4.7 "timeUnit").
type TimeUnit int

const (
	UnitSeconds TimeUnit = iota
	UnitMillis
	UnitMicros
)

// Config is the plain value container the INI/YAML loader (out of core
// scope, see confload) fills in and hands to NewLogger. The core never
// parses a config file itself (spec.md §1, Non-goals).
type Config struct {
	Ident string // table key and default file-name ident

	MagicKey string // seed for the shared-memory token MD5 (default: author's id)

	MaxMsgSize     int // cap for one formatted record, bytes [512..32640], default 4000
	QueueLength    int // in-proc ring entry count, default 512
	MaxConcurrents int // formatting buffer free-list size, default 128

	Appender Appender // sink bitset, default AppenderStdout

	PathPrefix string // directory the rolling file lives in
	NamePrefix string // file-name pattern; may embed <IDENT>/<PID>/<DATE>
	ShmLogFile string // shared-memory segment name; may embed <IDENT>/<PID>/<DATE>

	RollingTime    RollingTime // default RollNone
	MaxFileSize    int64       // bytes, default 16 MiB
	MaxFileCount   int         // default 10
	RollingAppend  bool        // append-mode vs shift-mode rotation

	LogLevel Level  // default Debug
	Layout   Layout // default Dated
	DateFormat DateFormat // default RFC3339
	TimeUnit   TimeUnit   // default UnitSeconds

	LocalTime    bool // localtime vs UTC
	ColorStyle   bool // ANSI color/style escapes
	TimestampID  bool // prepend "{sec.nsec}" stamp id
	FileLineNo   bool // "(basename:line)"
	Function     bool // "(basename:line::function)"
	ProcessID    bool // "[pid]"
	ThreadNo     bool // "[pid/tid]" (implies ProcessID)
	AutoWrapLine bool // auto-append trailing newline
	HideIdent    bool // suppress "<ident>" in the Dated layout
}

const (
	defaultMaxMsgSize     = 4000
	minMaxMsgSize         = 512
	maxMaxMsgSize          = 32640
	defaultQueueLength    = 512
	defaultMaxConcurrents = 128
	defaultMaxFileSize    = 16 * 1024 * 1024
	defaultMaxFileCount   = 10
	defaultMagicKey       = "sherle" // author's id, per spec §4.7 default
)

// applyDefaults fills zero-valued fields with their documented
// defaults (§4.7) and clamps MaxMsgSize into its documented bounds.
func (c *Config) applyDefaults() {
	if c.MagicKey == "" {
		c.MagicKey = defaultMagicKey
	}
	if c.MaxMsgSize == 0 {
		c.MaxMsgSize = defaultMaxMsgSize
	}
	if c.MaxMsgSize < minMaxMsgSize {
		c.MaxMsgSize = minMaxMsgSize
	}
	if c.MaxMsgSize > maxMaxMsgSize {
		c.MaxMsgSize = maxMaxMsgSize
	}
	if c.QueueLength == 0 {
		c.QueueLength = defaultQueueLength
	}
	if c.MaxConcurrents == 0 {
		c.MaxConcurrents = defaultMaxConcurrents
	}
	if c.Appender == 0 {
		c.Appender = AppenderStdout
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = defaultMaxFileSize
	}
	if c.MaxFileCount == 0 {
		c.MaxFileCount = defaultMaxFileCount
	}
	if c.LogLevel == 0 {
		c.LogLevel = Debug
	}
	if c.ThreadNo {
		c.ProcessID = true
	}
}
