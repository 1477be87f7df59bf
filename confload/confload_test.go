package confload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opencoff/clogger"
)

func newAsserter(t *testing.T, ctx string) func(cond bool, format string, args ...interface{}) {
	t.Helper()
	return func(cond bool, format string, args ...interface{}) {
		if !cond {
			t.Helper()
			t.Fatalf("%s: "+format, append([]interface{}{ctx}, args...)...)
		}
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "clogger.yaml")
	if err := os.WriteFile(p, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

const sampleConfig = `
clogger:
  svc1:
    appender: "STDOUT,ROLLINGFILE"
    logLevel: "INFO"
    layout: "DATED"
    dateFormat: "ISO8601"
    timeUnit: "ms"
    pathPrefix: "/var/log/svc1"
    namePrefix: "svc1-<IDENT>-<DATE>.log"
    rollingPolicy: "hourly"
    hideIdent: true
  svc2:
    appender: "STDOUT"
    logLevel: "DEBUG"

rollingpolicy:
  hourly:
    rollingTime: "HOUR"
    maxFileSize: 1048576
    maxFileCount: 5
    rollingAppend: true
`

func TestLoadParsesLoggerSections(t *testing.T) {
	assert := newAsserter(t, "parse sections")

	path := writeConfig(t, sampleConfig)
	cat, err := Load(path)
	assert(err == nil, "Load: %v", err)

	idents := cat.Idents()
	assert(len(idents) == 2, "exp 2 idents, saw %d", len(idents))

	cfg, ok := cat.Lookup("svc1")
	assert(ok, "svc1 not found")
	assert(cfg.Appender == clogger.AppenderStdout|clogger.AppenderRollingFile, "svc1 appender: saw %d", cfg.Appender)
	assert(cfg.LogLevel == clogger.Info, "svc1 logLevel: saw %v", cfg.LogLevel)
	assert(cfg.Layout == clogger.Dated, "svc1 layout: saw %v", cfg.Layout)
	assert(cfg.DateFormat == clogger.ISO8601, "svc1 dateFormat: saw %v", cfg.DateFormat)
	assert(cfg.TimeUnit == clogger.UnitMillis, "svc1 timeUnit: saw %v", cfg.TimeUnit)
	assert(cfg.HideIdent, "svc1 hideIdent must be true")
	assert(cfg.RollingTime == clogger.RollHour, "svc1 rollingTime: saw %v", cfg.RollingTime)
	assert(cfg.MaxFileSize == 1048576, "svc1 maxFileSize: saw %d", cfg.MaxFileSize)
	assert(cfg.MaxFileCount == 5, "svc1 maxFileCount: saw %d", cfg.MaxFileCount)
	assert(cfg.RollingAppend, "svc1 rollingAppend must be true")

	cfg2, ok := cat.Lookup("svc2")
	assert(ok, "svc2 not found")
	assert(cfg2.Appender == clogger.AppenderStdout, "svc2 appender: saw %d", cfg2.Appender)
	assert(cfg2.LogLevel == clogger.Debug, "svc2 logLevel: saw %v", cfg2.LogLevel)
}

func TestLoadUnknownIdentNotFound(t *testing.T) {
	assert := newAsserter(t, "unknown ident")

	path := writeConfig(t, sampleConfig)
	cat, err := Load(path)
	assert(err == nil, "Load: %v", err)

	_, ok := cat.Lookup("does-not-exist")
	assert(!ok, "expected lookup miss for unconfigured ident")
}

func TestLoadInvalidAppenderFails(t *testing.T) {
	assert := newAsserter(t, "invalid appender")

	path := writeConfig(t, `
clogger:
  bad:
    appender: "NOTAREALAPPENDER"
`)
	_, err := Load(path)
	assert(err != nil, "expected an error for an invalid appender token")
}

func TestLoadMissingRollingPolicyReferenceFails(t *testing.T) {
	assert := newAsserter(t, "missing rolling policy")

	path := writeConfig(t, `
clogger:
  bad:
    rollingPolicy: "nonexistent"
`)
	_, err := Load(path)
	assert(err != nil, "expected an error for a missing rollingpolicy reference")
}

func TestLoadDefaultTimeUnitIsSeconds(t *testing.T) {
	assert := newAsserter(t, "default time unit")

	path := writeConfig(t, `
clogger:
  plain:
    appender: "STDOUT"
`)
	cat, err := Load(path)
	assert(err == nil, "Load: %v", err)

	cfg, ok := cat.Lookup("plain")
	assert(ok, "plain not found")
	assert(cfg.TimeUnit == clogger.UnitSeconds, "exp default UnitSeconds, saw %v", cfg.TimeUnit)
}
