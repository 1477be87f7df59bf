package clogger

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/opencoff/clogger/shmring"
)

// openShmRing derives the shared-memory segment name and token for ident
// and opens it (§4.5 "initializes the shared-memory ring ... its name is
// derived from ident and a 16-byte MD5 tag is used as the token, seeded
// with the configured magicKey").
func openShmRing(ident string, pid int, startEpoch int64, cfg Config) (shmRing, error) {
	name := cfg.ShmLogFile
	if name == "" {
		name = ident
	}
	name = expandIdentPid(name, ident, pid)
	name = strings.ReplaceAll(name, "<DATE>", strconv.FormatInt(startEpoch, 10))

	dir := cfg.PathPrefix
	if dir == "" {
		dir = "/dev/shm"
		if _, err := os.Stat(dir); err != nil {
			dir = os.TempDir()
		}
	}

	sum := md5.Sum([]byte(cfg.MagicKey + ":" + ident))
	token := binary.LittleEndian.Uint64(sum[:8])

	size := cfg.MaxFileSize
	if size <= 0 {
		size = defaultMaxFileSize
	}

	r, err := shmring.Open(dir, name, int(size), token, nil)
	if err != nil {
		return nil, err
	}
	return &shmRingAdapter{r}, nil
}

// shmRingAdapter narrows *shmring.Ring to the shmRing interface the
// logger depends on.
type shmRingAdapter struct{ r *shmring.Ring }

func (a *shmRingAdapter) Write(size int, fill func([]byte)) bool { return a.r.Write(size, fill) }
func (a *shmRingAdapter) Close() error                           { return a.r.Close() }

// shmHandshake is a small shared-memory segment the manager opens at Init,
// named from the app name, a hash of the executable path and the PID
// (§4.6, §9 "Global singleton"). Nothing is written into it: a second Init
// call in the same process returns the same instance because of Init's
// globalMgr check (see manager.go), not through this segment. Its presence
// lets external tooling see that a logger manager is running for a given
// exe path + PID. close removes the segment's backing file.
type shmHandshake struct {
	r    *shmring.Ring
	path string
}

func openHandshake(appName string) *shmHandshake {
	exe, err := os.Executable()
	if err != nil {
		return nil
	}
	name := fmt.Sprintf("%s-%x-%d.handshake", appName, md5.Sum([]byte(exe)), os.Getpid())
	name = strings.NewReplacer("/", "-", "\\", "-").Replace(name)
	r, err := shmring.Open(os.TempDir(), name, 4096, 0, nil)
	if err != nil {
		return nil
	}
	return &shmHandshake{r: r, path: filepath.Join(os.TempDir(), name)}
}

func (h *shmHandshake) close() error {
	if h == nil || h.r == nil {
		return nil
	}
	err := h.r.Close()
	os.Remove(h.path)
	return err
}
