// Package confload is the out-of-core configuration loader (§1 "the
// INI-style configuration parser ... [is] an external collaborator";
// §4.7 "Config record"). The core never reads a config file itself; this
// package turns a YAML document's `[family:qualifier]`-shaped sections
// into populated clogger.Config values and hands a lookup function to
// clogger.Init.
package confload

import (
	"os"

	"github.com/opencoff/clogger"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// document is the on-disk shape: top-level families, each a map of
// qualifier name to section body, mirroring the INI source's
// "[clogger:ident1 ident2]" / "[rollingpolicy:name]" sections (§6
// "Configuration file").
type document struct {
	Clogger       map[string]loggerSection `yaml:"clogger"`
	RollingPolicy map[string]policySection `yaml:"rollingpolicy"`
}

type loggerSection struct {
	MagicKey       string `yaml:"magicKey"`
	MaxMsgSize     int    `yaml:"maxMsgSize"`
	QueueLength    int    `yaml:"queueLength"`
	MaxConcurrents int    `yaml:"maxConcurrents"`
	Appender       string `yaml:"appender"`
	PathPrefix     string `yaml:"pathPrefix"`
	NamePrefix     string `yaml:"namePrefix"`
	ShmLogFile     string `yaml:"shmLogFile"`
	RollingPolicy  string `yaml:"rollingPolicy"`
	LogLevel       string `yaml:"logLevel"`
	Layout         string `yaml:"layout"`
	DateFormat     string `yaml:"dateFormat"`
	TimeUnit       string `yaml:"timeUnit"`
	LocalTime      bool   `yaml:"localTime"`
	ColorStyle     bool   `yaml:"colorStyle"`
	TimestampID    bool   `yaml:"timestampId"`
	FileLineNo     bool   `yaml:"fileLineNo"`
	Function       bool   `yaml:"function"`
	ProcessID      bool   `yaml:"processId"`
	ThreadNo       bool   `yaml:"threadNo"`
	AutoWrapLine   bool   `yaml:"autoWrapLine"`
	HideIdent      bool   `yaml:"hideIdent"`
}

type policySection struct {
	RollingTime   string `yaml:"rollingTime"`
	MaxFileSize   int64  `yaml:"maxFileSize"`
	MaxFileCount  int    `yaml:"maxFileCount"`
	RollingAppend bool   `yaml:"rollingAppend"`
}

// Catalog is a parsed config file: an ident-keyed set of clogger.Config
// values, ready to back a clogger.ConfigLookup.
type Catalog struct {
	byIdent map[string]clogger.Config
}

// Load reads and parses path, resolving each logger section's
// rollingPolicy reference against the file's [rollingpolicy:*] sections
// (§6 "rolling policy is [rollingpolicy:name] referenced by a
// rollingPolicy key in the logger body").
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "confload: read %s", path)
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(err, "confload: parse %s", path)
	}

	cat := &Catalog{byIdent: make(map[string]clogger.Config, len(doc.Clogger))}
	for ident, sec := range doc.Clogger {
		cfg, err := sec.toConfig(ident, doc.RollingPolicy)
		if err != nil {
			return nil, errors.Wrapf(err, "confload: %s: %s", path, ident)
		}
		cat.byIdent[ident] = cfg
	}
	return cat, nil
}

func (sec loggerSection) toConfig(ident string, policies map[string]policySection) (clogger.Config, error) {
	cfg := clogger.Config{
		Ident:          ident,
		MagicKey:       sec.MagicKey,
		MaxMsgSize:     sec.MaxMsgSize,
		QueueLength:    sec.QueueLength,
		MaxConcurrents: sec.MaxConcurrents,
		PathPrefix:     sec.PathPrefix,
		NamePrefix:     sec.NamePrefix,
		ShmLogFile:     sec.ShmLogFile,
		LocalTime:      sec.LocalTime,
		ColorStyle:     sec.ColorStyle,
		TimestampID:    sec.TimestampID,
		FileLineNo:     sec.FileLineNo,
		Function:       sec.Function,
		ProcessID:      sec.ProcessID,
		ThreadNo:       sec.ThreadNo,
		AutoWrapLine:   sec.AutoWrapLine,
		HideIdent:      sec.HideIdent,
	}

	if sec.Appender != "" {
		a, ok := clogger.AppenderFromString(sec.Appender)
		if !ok {
			return cfg, errors.Errorf("invalid appender %q", sec.Appender)
		}
		cfg.Appender = a
	}
	if sec.LogLevel != "" {
		l, ok := clogger.LevelFromString(sec.LogLevel)
		if !ok {
			return cfg, errors.Errorf("invalid logLevel %q", sec.LogLevel)
		}
		cfg.LogLevel = l
	}
	if sec.Layout != "" {
		l, ok := clogger.LayoutFromString(sec.Layout)
		if !ok {
			return cfg, errors.Errorf("invalid layout %q", sec.Layout)
		}
		cfg.Layout = l
	}
	if sec.DateFormat != "" {
		d, ok := clogger.DateFormatFromString(sec.DateFormat)
		if !ok {
			return cfg, errors.Errorf("invalid dateFormat %q", sec.DateFormat)
		}
		cfg.DateFormat = d
	}
	switch sec.TimeUnit {
	case "", "s", "S":
		cfg.TimeUnit = clogger.UnitSeconds
	case "ms":
		cfg.TimeUnit = clogger.UnitMillis
	case "us", "µs":
		cfg.TimeUnit = clogger.UnitMicros
	default:
		return cfg, errors.Errorf("invalid timeUnit %q", sec.TimeUnit)
	}

	if sec.RollingPolicy != "" {
		pol, ok := policies[sec.RollingPolicy]
		if !ok {
			return cfg, errors.Errorf("missing rollingpolicy %q", sec.RollingPolicy)
		}
		if pol.RollingTime != "" {
			rt, ok := clogger.RollingTimeFromString(pol.RollingTime)
			if !ok {
				return cfg, errors.Errorf("invalid rollingTime %q", pol.RollingTime)
			}
			cfg.RollingTime = rt
		}
		cfg.MaxFileSize = pol.MaxFileSize
		cfg.MaxFileCount = pol.MaxFileCount
		cfg.RollingAppend = pol.RollingAppend
	}

	return cfg, nil
}

// Lookup satisfies clogger.ConfigLookup.
func (c *Catalog) Lookup(ident string) (clogger.Config, bool) {
	cfg, ok := c.byIdent[ident]
	return cfg, ok
}

// Idents returns every ident this catalog has a section for, in no
// particular order; useful for driving clogger.Init's eager-load list.
func (c *Catalog) Idents() []string {
	out := make([]string, 0, len(c.byIdent))
	for ident := range c.byIdent {
		out = append(out, ident)
	}
	return out
}
