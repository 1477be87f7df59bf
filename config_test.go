package clogger

import "testing"

func TestAppenderStringRoundTrip(t *testing.T) {
	assert := newAsserter(t, "appender round-trip")

	cases := []Appender{
		AppenderStdout,
		AppenderStdout | AppenderSyslog,
		AppenderStdout | AppenderRollingFile | AppenderShmmap,
		AppenderStdout | AppenderSyslog | AppenderRollingFile | AppenderShmmap,
	}
	for _, a := range cases {
		s := AppenderToString(a)
		got, ok := AppenderFromString(s)
		assert(ok, "AppenderFromString(%q) not ok", s)
		assert(got == a, "round-trip: %d -> %q -> %d", a, s, got)
	}
}

func TestAppenderFromStringEmpty(t *testing.T) {
	assert := newAsserter(t, "appender empty")

	a, ok := AppenderFromString("")
	assert(ok, "empty appender string must parse")
	assert(a == 0, "empty appender string must yield zero bitset, saw %d", a)
}

func TestAppenderFromStringUnknownToken(t *testing.T) {
	assert := newAsserter(t, "appender unknown token")

	_, ok := AppenderFromString("STDOUT,BOGUS")
	assert(!ok, "unknown token must fail to parse")
}

func TestAppenderFromStringCaseAndWhitespace(t *testing.T) {
	assert := newAsserter(t, "appender case/whitespace")

	a, ok := AppenderFromString(" stdout , syslog ")
	assert(ok, "lowercase/whitespace form must parse")
	assert(a == AppenderStdout|AppenderSyslog, "exp STDOUT|SYSLOG, saw %d", a)
}

func TestConfigApplyDefaults(t *testing.T) {
	assert := newAsserter(t, "config defaults")

	var c Config
	c.applyDefaults()

	assert(c.MagicKey == defaultMagicKey, "magic key default: saw %q", c.MagicKey)
	assert(c.MaxMsgSize == defaultMaxMsgSize, "max msg size default: saw %d", c.MaxMsgSize)
	assert(c.QueueLength == defaultQueueLength, "queue length default: saw %d", c.QueueLength)
	assert(c.MaxConcurrents == defaultMaxConcurrents, "max concurrents default: saw %d", c.MaxConcurrents)
	assert(c.Appender == AppenderStdout, "appender default: saw %d", c.Appender)
	assert(c.MaxFileSize == defaultMaxFileSize, "max file size default: saw %d", c.MaxFileSize)
	assert(c.MaxFileCount == defaultMaxFileCount, "max file count default: saw %d", c.MaxFileCount)
	assert(c.LogLevel == Debug, "log level default: saw %v", c.LogLevel)
	assert(c.Layout == Dated, "layout zero value must be Dated, saw %v", c.Layout)
}

func TestConfigApplyDefaultsClampsMaxMsgSize(t *testing.T) {
	assert := newAsserter(t, "config clamp")

	small := Config{MaxMsgSize: 10}
	small.applyDefaults()
	assert(small.MaxMsgSize == minMaxMsgSize, "below-min clamp: saw %d", small.MaxMsgSize)

	large := Config{MaxMsgSize: 1 << 20}
	large.applyDefaults()
	assert(large.MaxMsgSize == maxMaxMsgSize, "above-max clamp: saw %d", large.MaxMsgSize)
}

func TestConfigApplyDefaultsThreadNoImpliesProcessID(t *testing.T) {
	assert := newAsserter(t, "thread-no implies process-id")

	c := Config{ThreadNo: true}
	c.applyDefaults()
	assert(c.ProcessID, "ThreadNo must imply ProcessID")
}
