package clogger

import "testing"

func testLookup(cfgs map[string]Config) ConfigLookup {
	return func(ident string) (Config, bool) {
		c, ok := cfgs[ident]
		return c, ok
	}
}

func newTestManager(t *testing.T, cfgs map[string]Config) *Manager {
	t.Helper()
	m := &Manager{
		byIdent: make(map[string]*Logger),
		lookup:  testLookup(cfgs),
		clock:   newRealtimeClock(ResolutionMillisecond),
	}
	t.Cleanup(func() { m.teardown() })
	return m
}

func TestManagerLoadIsIdentStable(t *testing.T) {
	// §4.6 "Lookup": repeated Load calls for the same ident return the
	// same *Logger, not a new one each time.
	assert := newAsserter(t, "ident stability")

	m := newTestManager(t, map[string]Config{"svc": {Layout: Plain}})

	a, err := m.Load("svc")
	assert(err == nil, "first load: %v", err)
	b, err := m.Load("svc")
	assert(err == nil, "second load: %v", err)
	assert(a == b, "expected the same *Logger instance across Load calls")
}

func TestManagerLoadAssignsDistinctIDs(t *testing.T) {
	assert := newAsserter(t, "distinct ids")

	m := newTestManager(t, map[string]Config{
		"a": {Layout: Plain},
		"b": {Layout: Plain},
	})

	la, err := m.Load("a")
	assert(err == nil, "load a: %v", err)
	lb, err := m.Load("b")
	assert(err == nil, "load b: %v", err)
	assert(la.ID() != lb.ID(), "expected distinct ids, both got %d", la.ID())
}

func TestManagerLoadUnknownIdentFails(t *testing.T) {
	assert := newAsserter(t, "unknown ident")

	m := newTestManager(t, map[string]Config{"known": {Layout: Plain}})
	_, err := m.Load("unknown")
	assert(err != nil, "expected an error loading an unconfigured ident")
}

func TestManagerGetByIndex(t *testing.T) {
	// §4.6/§6 "Get": 0 means first, -1 means last/highest assigned id.
	assert := newAsserter(t, "indexed get")

	m := newTestManager(t, map[string]Config{
		"a": {Layout: Plain},
		"b": {Layout: Plain},
	})

	la, err := m.Load("a")
	assert(err == nil, "load a: %v", err)
	lb, err := m.Load("b")
	assert(err == nil, "load b: %v", err)

	first, ok := m.Get(0)
	assert(ok, "Get(0) not found")
	assert(first == la, "Get(0) must be the first-assigned logger")

	last, ok := m.Get(-1)
	assert(ok, "Get(-1) not found")
	assert(last == lb, "Get(-1) must be the last-assigned logger")

	direct, ok := m.Get(la.ID())
	assert(ok, "Get(%d) not found", la.ID())
	assert(direct == la, "Get(id) must return the matching logger")

	_, ok = m.Get(maxLoggerID + 1)
	assert(!ok, "Get out of range must report not found")
}

func TestManagerTeardownDestroysAllLoggers(t *testing.T) {
	assert := newAsserter(t, "teardown")

	m := &Manager{
		byIdent: make(map[string]*Logger),
		lookup:  testLookup(map[string]Config{"a": {Layout: Plain}}),
		clock:   newRealtimeClock(ResolutionMillisecond),
	}
	_, err := m.Load("a")
	assert(err == nil, "load: %v", err)

	err = m.teardown()
	assert(err == nil, "teardown: %v", err)
}

func TestResolveConfigPathExplicitMustExist(t *testing.T) {
	assert := newAsserter(t, "resolve config path")

	dir := t.TempDir()
	p, err := resolveConfigPath(dir, "", "")
	assert(err == nil, "existing explicit path must resolve: %v", err)
	assert(p == dir, "exp %q, saw %q", dir, p)

	_, err = resolveConfigPath(dir+"/does-not-exist", "", "")
	assert(err != nil, "nonexistent explicit path must fail")
}
