package clogger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// rollingFile is the size/time-rotating appender of §4.3. <IDENT> and <PID>
// are substituted once at construction. <DATE> marks where the live
// date-minute bucket is spliced in when a rolling-time policy is active;
// with no time policy it instead resolves once to the logger-startup
// epoch seconds, matching spec.md §4.3's literal wording for that case
// (original_source/src/clogger/rollingfile.c "rollingfile_apply" splices
// the bucket string at the same marker when a time policy is active).
type rollingFile struct {
	pathPrefix   string
	namePattern  string // resolved: prefix + pattern, minus any trailing <DATE>
	dateSuffix   string // literal text that followed <DATE> in the pattern, if any
	hadDateMark  bool   // pattern contained a <DATE> placeholder at all
	startEpoch   int64  // logger-startup epoch seconds, for the no-time-policy <DATE> case
	timePolicy   RollingTime
	maxFileSize  int64
	maxFileCount int
	append       bool // true: append mode (numbered, wraps); false: shift mode

	f              *os.File
	currentPath    string
	currentDateMin string
	offset         int64
	appendFileNo   int
}

// newRollingFile resolves the name pattern once at logger-startup time and
// leaves the file unopened until the first write (the original clogger
// opens lazily too, on first rollingfile_apply call).
func newRollingFile(pathPrefix, namePattern, ident string, pid int, startEpoch int64, policy RollingTime, maxSize int64, maxCount int, appendMode bool) *rollingFile {
	if pathPrefix != "" && !strings.HasSuffix(pathPrefix, string(filepath.Separator)) {
		pathPrefix += string(filepath.Separator)
	}
	if maxCount <= 0 {
		maxCount = defaultMaxFileCount
	}
	if maxSize <= 0 {
		maxSize = defaultMaxFileSize
	}

	base, suffix := namePattern, ""
	hadDateMark := false
	if idx := strings.Index(namePattern, "<DATE>"); idx >= 0 {
		base, suffix = namePattern[:idx], namePattern[idx+len("<DATE>"):]
		hadDateMark = true
	}
	base = expandIdentPid(base, ident, pid)
	suffix = expandIdentPid(suffix, ident, pid)

	return &rollingFile{
		pathPrefix:   pathPrefix,
		namePattern:  pathPrefix + base,
		dateSuffix:   suffix,
		hadDateMark:  hadDateMark,
		startEpoch:   startEpoch,
		timePolicy:   policy,
		maxFileSize:  maxSize,
		maxFileCount: maxCount,
		append:       appendMode,
	}
}

// expandIdentPid substitutes the <IDENT> and <PID> placeholders; <DATE> is
// handled separately by the caller since its replacement value depends on
// the time policy: the current write's date-minute bucket when one is
// active, the logger-startup epoch otherwise (see resolvedDateComponent).
func expandIdentPid(s, ident string, pid int) string {
	s = strings.ReplaceAll(s, "<IDENT>", ident)
	s = strings.ReplaceAll(s, "<PID>", strconv.Itoa(pid))
	return s
}

// dateMinute computes the current date-minute bucket string for t,
// respecting the size-only (RollNone) case where there is no time
// component at all.
func (rf *rollingFile) dateMinute(t time.Time) string {
	return rf.timePolicy.dateMinute(t)
}

// resolvedDateComponent returns the string spliced between namePattern and
// dateSuffix for the current write: the live date-minute bucket when a
// time policy is active, the logger-startup epoch when the pattern had a
// bare <DATE> placeholder with no time policy, or empty when neither
// applies (§4.3, §3 "resolved path-name").
func (rf *rollingFile) resolvedDateComponent(dateMin string) string {
	if rf.timePolicy != RollNone {
		return dateMin
	}
	if rf.hadDateMark {
		return strconv.FormatInt(rf.startEpoch, 10)
	}
	return ""
}

// write implements §4.3's three-step algorithm: possibly open a new file
// (date-minute changed, or size policy and no file open yet), possibly
// rotate on size, then append.
func (rf *rollingFile) write(dateMin string, payload []byte) error {
	if rf.f == nil || (rf.timePolicy != RollNone && dateMin != rf.currentDateMin) {
		if err := rf.openFor(dateMin); err != nil {
			return err
		}
	}

	if rf.offset+int64(len(payload)) > rf.maxFileSize {
		if err := rf.rotate(); err != nil {
			return err
		}
	}

	n, err := rf.f.Write(payload)
	if err != nil {
		return errors.Wrapf(err, "rollingfile: write %s", rf.currentPath)
	}
	rf.offset += int64(n)
	return nil
}

func (rf *rollingFile) openFor(dateMin string) error {
	if rf.f != nil {
		rf.f.Close()
	}
	path := rf.namePattern + rf.resolvedDateComponent(dateMin) + rf.dateSuffix
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrapf(err, "rollingfile: open %s", path)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "rollingfile: stat %s", path)
	}
	rf.f = f
	rf.currentPath = path
	rf.currentDateMin = dateMin
	rf.offset = st.Size()
	rf.appendFileNo = 0
	return nil
}

// rotate implements append-mode (numbered files wrapping modulo
// maxFileCount) or shift-mode (k-1 -> k rename chain) rotation (§4.3).
func (rf *rollingFile) rotate() error {
	base := rf.namePattern + rf.resolvedDateComponent(rf.currentDateMin) + rf.dateSuffix
	if rf.f != nil {
		rf.f.Close()
		rf.f = nil
	}

	if rf.append {
		rf.appendFileNo = (rf.appendFileNo + 1) % rf.maxFileCount
		next := base
		if rf.appendFileNo > 0 {
			next = fmt.Sprintf("%s.%d", base, rf.appendFileNo)
		}
		os.Remove(next)
		f, err := os.OpenFile(next, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return errors.Wrapf(err, "rollingfile: rotate-create %s", next)
		}
		rf.f = f
		rf.currentPath = next
		rf.offset = 0
		return nil
	}

	for k := rf.maxFileCount - 1; k >= 1; k-- {
		from := base
		if k-1 > 0 {
			from = fmt.Sprintf("%s.%d", base, k-1)
		}
		to := fmt.Sprintf("%s.%d", base, k)
		if _, err := os.Stat(from); err == nil {
			os.Remove(to)
			if err := os.Rename(from, to); err != nil {
				return errors.Wrapf(err, "rollingfile: rotate-rename %s -> %s", from, to)
			}
		}
	}

	f, err := os.OpenFile(base, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "rollingfile: rotate-recreate %s", base)
	}
	rf.f = f
	rf.currentPath = base
	rf.offset = 0
	return nil
}

func (rf *rollingFile) close() error {
	if rf.f == nil {
		return nil
	}
	err := rf.f.Close()
	rf.f = nil
	return err
}

// fileCount returns how many rotated files currently exist on disk for
// this appender's name pattern, used only by tests to check the
// maxFileCount invariant (§8).
func (rf *rollingFile) fileCount(dateMin string) int {
	base := rf.namePattern + rf.resolvedDateComponent(dateMin) + rf.dateSuffix
	n := 0
	if _, err := os.Stat(base); err == nil {
		n++
	}
	for k := 1; k < rf.maxFileCount; k++ {
		if _, err := os.Stat(fmt.Sprintf("%s.%d", base, k)); err == nil {
			n++
		}
	}
	return n
}
