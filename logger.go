package clogger

import (
	"fmt"
	"io"
	"log/syslog"
	mathrand "math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// WaitPolicy values for the max_wait_ms parameter of the log entry points
// (§4.5, §5): Infinite blocks until a ring slot is available, Nowait drops
// on first contention, and any positive value is a millisecond poll-sleep
// budget.
const (
	Infinite = -1
	Nowait   = 0
)

// colorStyle is the default per-level ANSI color/style pair (§4.5
// "installs a default per-level color/style table").
type colorStyle struct {
	style, color int
}

var defaultColorTable = map[Level]colorStyle{
	Fatal: {1, 35}, // bold magenta
	Error: {1, 31}, // bold red
	Warn:  {0, 33}, // yellow
	Info:  {0, 32}, // green
	Debug: {0, 36}, // cyan
	Trace: {0, 37}, // white
}

// Logger is a single ident's formatting, level-gating and sink fan-out
// pipeline (§4.5): many producer goroutines feed its in-proc ring, one
// consumer goroutine drains it and dispatches to stdout/syslog/shm/file.
type Logger struct {
	cfg   Config
	ident string
	id    int
	pid   int

	level  atomic.Int32 // Level, mutable only via package-internal test hooks
	layout Layout

	ring *ringBuffer
	pool *bufPool

	clock     *realtimeClock
	ownsClock bool
	startTime int64 // epoch seconds at construction, for the no-time-policy <DATE> case

	rof    *rollingFile
	shm    shmRing
	sys    *syslog.Writer
	stdout io.Writer

	sem chan struct{}

	shutdownMu sync.Mutex
	consumerWg sync.WaitGroup

	msgCount   atomic.Uint64
	roundCount atomic.Uint64
}

// shmRing is the subset of the shared-memory ring's surface the logger
// needs; satisfied by shmring.Ring. Kept narrow so logger.go has no build
// dependency on the shmring package's platform-specific files.
type shmRing interface {
	Write(size int, fill func([]byte)) bool
	Close() error
}

// NewLogger constructs and starts a logger for ident, opening whichever
// sinks cfg.Appender selects. clock may be nil, in which case the logger
// starts and owns a private realtimeClock; a non-nil clock is assumed to
// be owned (started and stopped) by the caller, e.g. the manager (§4.6).
func NewLogger(ident string, id int, cfg Config, clock *realtimeClock) (*Logger, error) {
	cfg.applyDefaults()

	l := &Logger{
		cfg:    cfg,
		ident:  ident,
		id:     id,
		pid:    os.Getpid(),
		layout: cfg.Layout,
		ring:   newRingBuffer(cfg.QueueLength * alignUp(recordHeaderLen+32+cfg.MaxMsgSize)),
		pool:   newBufPool(cfg.MaxConcurrents, cfg.MaxMsgSize),
		sem:    make(chan struct{}, cfg.QueueLength),
		stdout: os.Stdout,
	}
	l.level.Store(int32(cfg.LogLevel))

	if clock == nil {
		l.clock = newRealtimeClock(ResolutionMillisecond)
		l.ownsClock = true
	} else {
		l.clock = clock
	}
	l.startTime = l.clock.Now().Unix()

	if cfg.Appender&AppenderRollingFile != 0 {
		l.rof = newRollingFile(cfg.PathPrefix, cfg.NamePrefix, ident, l.pid, l.startTime,
			cfg.RollingTime, cfg.MaxFileSize, cfg.MaxFileCount, cfg.RollingAppend)
	}

	if cfg.Appender&AppenderSyslog != 0 {
		tag := filepath.Base(os.Args[0])
		w, err := syslog.New(syslog.LOG_NOTICE|syslog.LOG_DAEMON, tag)
		if err != nil {
			l.teardownClock()
			return nil, errors.Wrapf(err, "logger %s: open syslog", ident)
		}
		l.sys = w
	}

	if cfg.Appender&AppenderShmmap != 0 {
		r, err := openShmRing(ident, l.pid, l.startTime, cfg)
		if err != nil {
			// §7: token mismatch / create failure disables only the shm
			// sink, with a warning; other sinks continue.
			fmt.Fprintf(os.Stderr, "clogger: %s: shared-memory sink disabled: %v\n", ident, err)
		} else {
			l.shm = r
		}
	}

	l.shutdownMu.Lock() // created locked; Destroy() unlocks it to signal exit (§4.5, §9)

	l.consumerWg.Add(1)
	go l.consume()

	return l, nil
}

// LevelEnabled returns true iff the logger's configured level is not Off
// and l is admitted at the logger's current level (§3, §4.5).
func (lg *Logger) LevelEnabled(l Level) bool {
	cur := Level(lg.level.Load())
	return cur.Enabled(l)
}

// Ident returns the logger's ident string.
func (lg *Logger) Ident() string { return lg.ident }

// ID returns the logger's numeric id as assigned by the manager.
func (lg *Logger) ID() int { return lg.id }

// GetLogMessages reports the message count and, via round, the number of
// times that counter has wrapped (§4.5, §6 get_log_messages).
func (lg *Logger) GetLogMessages(round *uint64) uint64 {
	if round != nil {
		*round = lg.roundCount.Load()
	}
	return lg.msgCount.Load()
}

// GetTickTime returns the logger's clock's last refreshed snapshot.
func (lg *Logger) GetTickTime(res ClockResolution) tick { return lg.clock.Tick(res) }

// GetTimezone, GetDaylight and GetLocalTime round out the logger's public
// surface (§6); all three delegate to the package-level clock helpers
// since timezone/DST/localtime decomposition is process-global, not
// per-logger, state.
func (lg *Logger) GetTimezone() (int, string) { return Timezone() }
func (lg *Logger) GetDaylight() bool          { return Daylight() }
func (lg *Logger) GetLocalTime(offsetMinutes int, dst bool, ts int64) LocalTimeParts {
	return LocalTime(offsetMinutes, dst, ts)
}

// LogMessage is the raw-bytes log entry point (§4.5, §6 log_message): msg
// is already formatted; waitMs selects Infinite/Nowait/budget admission
// to the ring. Oversize messages are hard-truncated to maxMsgSize-1 (§7).
func (lg *Logger) LogMessage(level Level, waitMs int, msg []byte) {
	if !lg.LevelEnabled(level) {
		return
	}
	if len(msg) > lg.cfg.MaxMsgSize-1 {
		msg = msg[:lg.cfg.MaxMsgSize-1]
	}
	dm := lg.dateMinuteNow()
	lg.enqueue(level, dm, msg, waitMs)
}

// LogFormat is the formatted log entry point (§4.5, §6 log_format): it
// pops a buffer from the free-list, assembles the record per the logger's
// layout, and enqueues it. file/line/function are only consulted for the
// Dated layout's optional source-location field.
func (lg *Logger) LogFormat(level Level, waitMs int, file string, line int, function string, format string, args ...interface{}) {
	if !lg.LevelEnabled(level) {
		return
	}

	buf := lg.pool.get()
	defer lg.pool.put(buf)

	now := lg.clock.Now()
	if lg.layout == Dated {
		buf = lg.formatDated(buf, level, now, file, line, function, format, args...)
	} else {
		buf = fmt.Appendf(buf, format, args...)
		if lg.cfg.AutoWrapLine && (len(buf) == 0 || buf[len(buf)-1] != '\n') {
			buf = append(buf, '\n')
		}
	}

	buf = truncateEllipsis(buf, lg.cfg.MaxMsgSize)
	dm := lg.dateMinute(now)
	lg.enqueue(level, dm, buf, waitMs)
}

// truncateEllipsis implements §4.5's formatted-variant truncation: cut to
// max bytes and overwrite the last three with "..." if b was longer.
func truncateEllipsis(b []byte, max int) []byte {
	if len(b) <= max {
		return b
	}
	b = b[:max]
	if max >= 3 {
		copy(b[max-3:], "...")
	}
	return b
}

func (lg *Logger) dateMinuteNow() string {
	return lg.dateMinute(lg.clock.Now())
}

func (lg *Logger) dateMinute(t time.Time) string {
	if lg.rof == nil {
		return ""
	}
	return lg.rof.dateMinute(t)
}

// enqueue reserves a ring slot per waitMs's admission policy (§4.5, §5)
// and posts the semaphore on success. Dropped entries are silent, per §7.
// Retries back off with a little jitter so a burst of contending producers
// doesn't retry in lockstep against the same producer-side lock.
func (lg *Logger) enqueue(level Level, dateMinute string, payload []byte, waitMs int) {
	size := encodedRecordSize(dateMinute, payload)
	fill := func(dst []byte) { encodeRecord(dst, level, dateMinute, payload) }

	deadline := waitMs
	for {
		switch lg.ring.write(size, fill) {
		case RingWritten:
			select {
			case lg.sem <- struct{}{}:
			default:
			}
			return
		case RingFatal:
			return
		case RingAgain:
			switch {
			case waitMs == Nowait:
				return
			case waitMs == Infinite:
				time.Sleep(retryBackoff())
			default:
				if deadline <= 0 {
					return
				}
				time.Sleep(retryBackoff())
				deadline--
			}
		}
	}
}

// retryBackoff returns a short, jittered sleep for a contended-ring retry:
// a millisecond plus up to half a millisecond of jitter.
func retryBackoff() time.Duration {
	return time.Millisecond + time.Duration(mathrand.IntN(500))*time.Microsecond
}

// formatDated assembles a Dated-layout record per §4.5's fixed field
// order into buf and returns the extended slice.
func (lg *Logger) formatDated(buf []byte, level Level, now time.Time, file string, line int, function string, format string, args ...interface{}) []byte {
	if lg.cfg.TimestampID {
		buf = append(buf, StampID(now)...)
		buf = append(buf, ' ')
	}

	cs, hasColor := defaultColorTable[level]
	if lg.cfg.ColorStyle && hasColor {
		buf = fmt.Appendf(buf, "\x1b[%d;%dm", cs.style, cs.color)
	}

	buf = append(buf, formatTimestamp(now, lg.cfg.DateFormat, lg.cfg.TimeUnit, lg.cfg.LocalTime)...)
	buf = append(buf, ' ')
	buf = append(buf, level.String()...)
	buf = append(buf, ' ')

	if !lg.cfg.HideIdent {
		buf = append(buf, '<')
		buf = append(buf, lg.ident...)
		buf = append(buf, '>')
		buf = append(buf, ' ')
	}

	if lg.cfg.Function && function != "" {
		buf = fmt.Appendf(buf, "(%s:%d::%s) ", filepath.Base(file), line, function)
	} else if lg.cfg.FileLineNo && file != "" {
		buf = fmt.Appendf(buf, "(%s:%d) ", filepath.Base(file), line)
	}

	if lg.cfg.ProcessID {
		if lg.cfg.ThreadNo {
			buf = fmt.Appendf(buf, "[%d/%d] ", lg.pid, threadID())
		} else {
			buf = fmt.Appendf(buf, "[%d] ", lg.pid)
		}
	}

	if lg.cfg.ColorStyle && hasColor {
		buf = fmt.Appendf(buf, format, args...)
		buf = append(buf, "\x1b[0m"...)
	} else {
		buf = fmt.Appendf(buf, format, args...)
	}

	if lg.cfg.AutoWrapLine && (len(buf) == 0 || buf[len(buf)-1] != '\n') {
		buf = append(buf, '\n')
	}
	return buf
}

// StampID renders the "{seconds.nanoseconds}" stamp-id string used both
// as the optional Dated-layout prefix and the manager's stamp_id entry
// point (§4.5, §6).
func StampID(t time.Time) string {
	return fmt.Sprintf("{%d.%d}", t.Unix(), t.Nanosecond())
}

// consume is the logger's background drain goroutine (§4.5 "Consumer
// thread"). It waits on the semaphore with a 1-second timeout, drains
// whatever the ring currently holds, and exits once the shutdown mutex
// can be acquired (signaling Destroy() has unlocked it).
func (lg *Logger) consume() {
	defer lg.consumerWg.Done()

	for {
		select {
		case <-lg.sem:
		case <-time.After(time.Second):
		}

		for lg.ring.readNext(lg.dispatch) == ReadNext {
		}

		if lg.shutdownMu.TryLock() {
			for lg.ring.readNext(lg.dispatch) == ReadNext {
			}
			return
		}
	}
}

// dispatch is the ring read callback: it decodes one entry and fans it
// out to enabled sinks in the fixed order of §4.5, then always reports
// "consume" (true) since sinks never ask the producer to retry.
func (lg *Logger) dispatch(raw []byte) bool {
	rec, ok := decodeRecord(raw)
	if !ok {
		return true
	}

	if lg.cfg.Appender&AppenderStdout != 0 {
		lg.stdout.Write(rec.Payload)
	}

	if lg.sys != nil {
		lg.writeSyslog(rec.Level, rec.Payload)
	}

	shmOK := false
	if lg.shm != nil {
		shmOK = lg.shm.Write(len(rec.Payload), func(dst []byte) { copy(dst, rec.Payload) })
	}

	// §9 open question: the file sink is intentionally skipped once the
	// shared-memory sink has already accepted the record.
	if lg.rof != nil && !shmOK {
		if err := lg.rof.write(rec.DateMinute, rec.Payload); err != nil {
			fmt.Fprintf(os.Stderr, "clogger: %s: rollingfile: %v\n", lg.ident, err)
		}
	}

	n := lg.msgCount.Add(1)
	if n == 0 {
		lg.roundCount.Add(1)
	}
	return true
}

// writeSyslog maps a record's level to the syslog sink (§4.5 "Consumer
// thread": Fatal->Emerg, Error->Err, Warn->Warning, Info->Info,
// Debug->Debug, Trace/All->not emitted).
func (lg *Logger) writeSyslog(level Level, msg []byte) {
	s := string(msg)
	switch level {
	case Fatal:
		lg.sys.Emerg(s)
	case Error:
		lg.sys.Err(s)
	case Warn:
		lg.sys.Warning(s)
	case Info:
		lg.sys.Info(s)
	case Debug:
		lg.sys.Debug(s)
	}
}

// teardownClock stops the clock only if this logger owns it (a manager-
// supplied clock outlives any one logger).
func (lg *Logger) teardownClock() {
	if lg.ownsClock && lg.clock != nil {
		lg.clock.stop()
	}
}

// Destroy implements §4.5's destruction sequence: unlock the shutdown
// mutex, wake the consumer, join it, then tear down every sink.
func (lg *Logger) Destroy() error {
	lg.shutdownMu.Unlock()
	select {
	case lg.sem <- struct{}{}:
	default:
	}
	lg.consumerWg.Wait()

	var firstErr error
	if lg.rof != nil {
		if err := lg.rof.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if lg.shm != nil {
		if err := lg.shm.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if lg.sys != nil {
		if err := lg.sys.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	lg.teardownClock()
	return firstErr
}

// bufPool is the bounded formatting-buffer free-list of §3/§4.7
// (maxConcurrents). Exhaustion falls back to a fresh allocation rather
// than blocking a producer, since the free-list is a performance
// optimization, not a correctness requirement.
type bufPool struct {
	ch   chan []byte
	size int
}

func newBufPool(n, size int) *bufPool {
	ch := make(chan []byte, n)
	for i := 0; i < n; i++ {
		ch <- make([]byte, 0, size)
	}
	return &bufPool{ch: ch, size: size}
}

func (p *bufPool) get() []byte {
	select {
	case b := <-p.ch:
		return b
	default:
		return make([]byte, 0, p.size)
	}
}

func (p *bufPool) put(b []byte) {
	select {
	case p.ch <- b[:0]:
	default:
	}
}
