package clogger

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// maxLoggerID bounds the manager's numeric index array (§4.6 "index array
// idx[1..=MAX]"), matching the original clogger's CLOG_LOGGERID_MAX.
const maxLoggerID = 255

// ConfigLookup resolves an ident to its Config, as populated by the
// out-of-core configuration parser (confload); the core never parses a
// config file itself (§1 Non-goals, §4.7).
type ConfigLookup func(ident string) (Config, bool)

// Manager is the process-wide ident->logger table of §4.6: a
// readers-writer-lock-guarded map plus an O(1) numeric index array, a
// shared real-time clock, and an application-default logger reference.
type Manager struct {
	mu      sync.RWMutex
	byIdent map[string]*Logger
	idx     [maxLoggerID + 1]*Logger // idx[0] is unused; ids run 1..maxLoggerID

	nextID  atomic.Int32
	lookup  ConfigLookup
	clock   *realtimeClock
	cfgPath string

	defaultLogger atomic.Pointer[Logger]
	handshake     *shmHandshake
}

var (
	globalMgrMu sync.Mutex
	globalMgr   *Manager
)

// Init runs once per process (idempotent: a second call from anywhere in
// the same process returns the existing instance, mirroring §4.6/§9's
// shared-memory handshake that lets a dynamically loaded module resolve
// to the same manager rather than creating a duplicate). configPath may
// be empty, in which case it is resolved via the search order in
// resolveConfigPath. The first ident supplied becomes the default
// application logger.
func Init(configPath, envVar, appName string, lookup ConfigLookup, idents ...string) (*Manager, error) {
	globalMgrMu.Lock()
	defer globalMgrMu.Unlock()

	if globalMgr != nil {
		return globalMgr, nil
	}

	resolved, err := resolveConfigPath(configPath, envVar, appName)
	if err != nil {
		return nil, errors.Wrap(err, "clogger: manager init: resolve config path")
	}

	m := &Manager{
		byIdent: make(map[string]*Logger),
		lookup:  lookup,
		clock:   newRealtimeClock(ResolutionMillisecond),
		cfgPath: resolved,
	}

	m.handshake = openHandshake(appName)

	for i, ident := range idents {
		lg, err := m.load(ident)
		if err != nil {
			m.teardown()
			return nil, errors.Wrapf(err, "clogger: manager init: load %q", ident)
		}
		if i == 0 {
			m.defaultLogger.Store(lg)
		}
	}

	globalMgr = m
	return m, nil
}

// resolveConfigPath returns the explicit argument when one is given; an
// explicit argument that doesn't exist is an error (the caller asked for
// it by name). Otherwise it tries, in order, the executable's directory,
// "<exe_dir>/conf/", "<exe_dir>/../conf/", the path in the named
// environment variable, and "/etc/<appName>/" (§4.6 "Init"), and returns
// the first candidate that is an existing directory. No config file name
// is looked for inside these directories, and an environment variable
// naming a regular file is skipped. The executable's directory (or "."
// when it cannot be determined) always exists, so with no explicit
// argument it is the result and the later candidates are not reached.
func resolveConfigPath(explicit, envVar, appName string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.Wrapf(err, "explicit config path %q", explicit)
		}
		return explicit, nil
	}

	exe, err := os.Executable()
	if err != nil {
		exe = ""
	}
	exeDir := filepath.Dir(exe)

	candidates := []string{
		exeDir,
		filepath.Join(exeDir, "conf"),
		filepath.Join(exeDir, "..", "conf"),
	}
	if envVar != "" {
		if p := os.Getenv(envVar); p != "" {
			candidates = append(candidates, p)
		}
	}
	if appName != "" {
		candidates = append(candidates, filepath.Join("/etc", appName))
	}

	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && st.IsDir() {
			return c, nil
		}
	}
	return "", errors.New("no config path found in search order")
}

// load returns the logger for ident, creating and caching it on first
// call under the writer side of the lock; subsequent lookups only need
// the reader side (§4.6 "Lookup"). An empty ident returns the default
// application logger without locking.
func (m *Manager) load(ident string) (*Logger, error) {
	if ident == "" {
		if lg := m.defaultLogger.Load(); lg != nil {
			return lg, nil
		}
		return nil, errors.New("clogger: no default logger configured")
	}

	m.mu.RLock()
	if lg, ok := m.byIdent[ident]; ok {
		m.mu.RUnlock()
		return lg, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if lg, ok := m.byIdent[ident]; ok {
		return lg, nil
	}

	cfg, ok := m.lookup(ident)
	if !ok {
		return nil, errors.Errorf("clogger: no configuration for ident %q", ident)
	}
	cfg.Ident = ident

	id := int(m.nextID.Add(1))
	if id > maxLoggerID {
		m.nextID.Add(-1)
		return nil, errors.Errorf("clogger: logger id space exhausted (max %d)", maxLoggerID)
	}

	lg, err := NewLogger(ident, id, cfg, m.clock)
	if err != nil {
		m.nextID.Add(-1)
		return nil, errors.Wrapf(err, "clogger: create logger %q", ident)
	}

	m.byIdent[ident] = lg
	m.idx[id] = lg
	return lg, nil
}

// Load is the public form of load (§4.6, §6 "load").
func (m *Manager) Load(ident string) (*Logger, error) { return m.load(ident) }

// StampID returns the manager's shared clock's current "{sec.nsec}"
// stamp id (§6 "stamp_id").
func (m *Manager) StampID() string {
	return StampID(m.clock.Now())
}

// Get performs the O(1) indexed lookup of §4.6/§6: 0 means "first", -1
// means "last" (the highest assigned id), and any positive value is a
// direct id.
func (m *Manager) Get(id int) (*Logger, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	max := int(m.nextID.Load())
	switch {
	case id == 0:
		id = 1
	case id == -1:
		id = max
	}
	if id < 1 || id > max || id > maxLoggerID {
		return nil, false
	}
	lg := m.idx[id]
	return lg, lg != nil
}

// Uninit flips the init flag, drains and destroys every logger,
// uninitializes the clock, and destroys the handshake segment (§4.6
// "Teardown"). It is the package-level counterpart to Init and operates
// on the process-wide singleton.
func Uninit() error {
	globalMgrMu.Lock()
	defer globalMgrMu.Unlock()

	if globalMgr == nil {
		return nil
	}
	err := globalMgr.teardown()
	globalMgr = nil
	return err
}

func (m *Manager) teardown() error {
	m.mu.Lock()
	loggers := make([]*Logger, 0, len(m.byIdent))
	for _, lg := range m.byIdent {
		loggers = append(loggers, lg)
	}
	m.byIdent = make(map[string]*Logger)
	m.mu.Unlock()

	var firstErr error
	for _, lg := range loggers {
		if err := lg.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.clock.stop()
	if m.handshake != nil {
		m.handshake.close()
	}
	return firstErr
}
