// Copyright 2009 The Go Authors. All rights reserved.
//
// Changes Copyright 2012, Sudhi Herle <sudhi -at- herle.net>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package clogger

import (
	"fmt"
	"strings"
)

// Level is the log-priority hierarchy a Logger is gated on. Numeric values
// match the wire/config encoding of the original clogger C library so that
// a level read from a config file round-trips through LevelFromString and
// LevelToString without remapping.
type Level int

const (
	Off   Level = 0
	Fatal Level = 4
	Error Level = 5
	Warn  Level = 6
	Info  Level = 7
	Debug Level = 8
	Trace Level = 9
	All   Level = 10
)

// levelName maps each defined level to its canonical uppercase name.
var levelName = map[Level]string{
	Off:   "OFF",
	Fatal: "FATAL",
	Error: "ERROR",
	Warn:  "WARN",
	Info:  "INFO",
	Debug: "DEBUG",
	Trace: "TRACE",
	All:   "ALL",
}

// levelByName is the case-insensitive reverse of levelName, plus the
// syslog-style aliases callers commonly write in config files.
var levelByName = map[string]Level{
	"OFF":     Off,
	"FATAL":   Fatal,
	"EMERG":   Fatal,
	"CRIT":    Fatal,
	"ERROR":   Error,
	"ERR":     Error,
	"WARN":    Warn,
	"WARNING": Warn,
	"INFO":    Info,
	"DEBUG":   Debug,
	"TRACE":   Trace,
	"ALL":     All,
}

func (l Level) String() string {
	if s, ok := levelName[l]; ok {
		return s
	}
	return fmt.Sprintf("invalid-level-%d", int(l))
}

// LevelToString renders the canonical name for a level; ok is false for a
// value that isn't one of the eight defined levels.
func LevelToString(l Level) (string, bool) {
	s, ok := levelName[l]
	return s, ok
}

// LevelFromString is the case-insensitive inverse of LevelToString.
func LevelFromString(s string) (Level, bool) {
	l, ok := levelByName[strings.ToUpper(strings.TrimSpace(s))]
	return l, ok
}

// Enabled reports whether a message at level l is admitted by a logger
// configured at level 'configured': l must be at or below the configured
// level (more urgent or equal), and the logger must not be Off.
func (configured Level) Enabled(l Level) bool {
	if configured == Off {
		return false
	}
	return l <= configured
}

// syslogName returns the name of the stdlib log/syslog priority a clogger
// level maps to, the same mapping the syslog sink's writeSyslog applies.
// Trace and All have no syslog equivalent (empty name) and are never
// emitted there (§4.5 "Consumer thread").
func (l Level) syslogName() string {
	switch l {
	case Fatal:
		return "EMERG"
	case Error:
		return "ERR"
	case Warn:
		return "WARNING"
	case Info:
		return "INFO"
	case Debug:
		return "DEBUG"
	default:
		return ""
	}
}
