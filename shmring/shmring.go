// Package shmring implements the cross-process shared-memory ring buffer
// of §4.4: a named, page-aligned segment with a small header (size,
// authentication words, offsets) followed by a variable-entry byte ring,
// guarded by OS-advisory byte-range locks standing in for the pthread
// "robust mutex" primitive and a counting semaphore used to wake waiting
// consumers.
package shmring

import (
	"crypto/rand"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ErrToken is returned by Open when an attacher's token does not
// reproduce the creator's stored magic (§4.4 "Authentication").
var ErrToken = errors.New("shmring: token")

const (
	pageSize = 4096

	offMappedSize = 0
	offMagic      = 8
	offCipher     = 16
	offSem        = 24 // u32 futex/poll word, 4 bytes reserved after it
	offReadOffset = 32
	offWriteOffset = 40
	offL          = 48

	// Byte-range lock ids, fcntl-locked on the backing fd. Advisory locks
	// of this kind are released by the kernel the instant the holding
	// process's file descriptor closes -- including on a crash -- which
	// is the same "a dead holder never wedges anyone else" guarantee a
	// pthread robust mutex gives, without needing an explicit
	// "make consistent" step (see DESIGN.md).
	lockRead       = 256
	lockWrite      = 257
	lockReadOffset = 258
	lockWriteOffset = 259

	headerSize  = pageSize
	entryAlign  = 8
	sizeFieldSz = 8
)

// Cipher is the encipher/decipher callback pair of §4.4; the default is
// XOR, which is its own inverse so the same function serves both roles.
type Cipher func(magic, token uint64) uint64

func xorCipher(a, b uint64) uint64 { return a ^ b }

// Ring is one attachment (creator or attacher) to a named shared-memory
// ring buffer.
type Ring struct {
	f    *os.File
	data []byte
	path string

	payloadOff int
	l          int // payload length L
}

// Open creates the named segment under dir if it does not exist, or
// attaches to it if it does (§4.4 "first opener creates, subsequent
// openers attach"). token is an 8-byte caller secret; a zero token
// disables authentication. cipher defaults to XOR when nil.
func Open(dir, name string, size int, token uint64, cipher Cipher) (*Ring, error) {
	if cipher == nil {
		cipher = xorCipher
	}
	if size <= 0 {
		size = 64 * 1024
	}

	path := filepath.Join(dir, sanitize(name))

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err == nil {
		return createRing(f, path, size, token, cipher)
	}
	if !os.IsExist(err) {
		return nil, errors.Wrapf(err, "shmring: create %s", path)
	}

	f, err = os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "shmring: open %s", path)
	}
	return attachRing(f, path, token, cipher)
}

func sanitize(name string) string {
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	return name
}

func createRing(f *os.File, path string, size int, token uint64, cipher Cipher) (*Ring, error) {
	mapped := headerSize + alignUp(size)
	if err := f.Truncate(int64(mapped)); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "shmring: truncate %s", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, mapped, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "shmring: mmap %s", path)
	}

	var magicBuf [8]byte
	if _, err := rand.Read(magicBuf[:]); err != nil {
		unix.Munmap(data)
		f.Close()
		return nil, errors.Wrap(err, "shmring: generate magic")
	}
	magic := binary.LittleEndian.Uint64(magicBuf[:])

	var ciph uint64
	if token != 0 {
		ciph = cipher(magic, token)
	}

	binary.LittleEndian.PutUint64(data[offMappedSize:], uint64(mapped))
	binary.LittleEndian.PutUint64(data[offMagic:], magic)
	binary.LittleEndian.PutUint64(data[offCipher:], ciph)
	binary.LittleEndian.PutUint64(data[offReadOffset:], 0)
	binary.LittleEndian.PutUint64(data[offWriteOffset:], 0)
	binary.LittleEndian.PutUint64(data[offL:], uint64(size))

	return &Ring{f: f, data: data, path: path, payloadOff: headerSize, l: size}, nil
}

func attachRing(f *os.File, path string, token uint64, cipher Cipher) (*Ring, error) {
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "shmring: stat %s", path)
	}
	mapped := int(st.Size())
	if mapped < headerSize {
		f.Close()
		return nil, errors.Errorf("shmring: %s too small to be a valid segment", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, mapped, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "shmring: mmap %s", path)
	}

	magic := binary.LittleEndian.Uint64(data[offMagic:])
	ciph := binary.LittleEndian.Uint64(data[offCipher:])
	if ciph != 0 {
		candidate := cipher(ciph, token)
		if candidate != magic {
			unix.Munmap(data)
			f.Close()
			return nil, ErrToken
		}
	}

	l := int(binary.LittleEndian.Uint64(data[offL:]))
	return &Ring{f: f, data: data, path: path, payloadOff: headerSize, l: l}, nil
}

func alignUp(n int) int {
	if n%entryAlign == 0 {
		return n
	}
	return n + (entryAlign - n%entryAlign)
}

func mod(n, l int) int {
	n %= l
	if n < 0 {
		n += l
	}
	return n
}

func (r *Ring) readable(ro, wo int) int {
	l := r.l
	wrap := 0
	if (ro/l)%2 != (wo/l)%2 {
		wrap = 1
	}
	return wrap*l + mod(wo, l) - mod(ro, l)
}

func (r *Ring) writable(ro, wo int) int { return r.l - r.readable(ro, wo) }

func (r *Ring) lockByte(id int64) error {
	lk := unix.Flock_t{Type: unix.F_WRLCK, Whence: 0, Start: id, Len: 1}
	return unix.FcntlFlock(r.f.Fd(), unix.F_SETLKW, &lk)
}

func (r *Ring) unlockByte(id int64) error {
	lk := unix.Flock_t{Type: unix.F_UNLCK, Whence: 0, Start: id, Len: 1}
	return unix.FcntlFlock(r.f.Fd(), unix.F_SETLKW, &lk)
}

func (r *Ring) getOffset(off int, lockID int64) int {
	r.lockByte(lockID)
	v := binary.LittleEndian.Uint64(r.data[off:])
	r.unlockByte(lockID)
	return int(v)
}

func (r *Ring) setOffset(off int, lockID int64, v int) {
	r.lockByte(lockID)
	binary.LittleEndian.PutUint64(r.data[off:], uint64(v))
	r.unlockByte(lockID)
}

// Write reserves size bytes (an 8-byte length prefix plus the payload,
// aligned) and invokes fill to populate it, matching the in-proc ring's
// callback contract (§4.2, §4.4, §9). It returns false if there is not
// enough free space; the caller (the logger's consumer dispatch) treats
// that as "this sink did not accept the record" with no retry of its own.
func (r *Ring) Write(size int, fill func([]byte)) bool {
	a := alignUp(sizeFieldSz + size)
	if a > r.l {
		return false
	}

	r.lockByte(lockWrite)
	defer r.unlockByte(lockWrite)

	ro := r.getOffset(offReadOffset, lockReadOffset)
	wo := r.getOffset(offWriteOffset, lockWriteOffset)
	if a > r.writable(ro, wo) {
		return false
	}

	wOff := mod(wo, r.l)
	tailGap := r.l - wOff
	if tailGap < a {
		if a+tailGap > r.writable(ro, wo) {
			return false
		}
		base := r.payloadOff + wOff
		for i := 0; i < tailGap; i++ {
			r.data[base+i] = 0
		}
		wo += tailGap
		wOff = 0
	}

	base := r.payloadOff + wOff
	binary.LittleEndian.PutUint64(r.data[base:], uint64(size))
	fill(r.data[base+sizeFieldSz : base+sizeFieldSz+size])

	r.setOffset(offWriteOffset, lockWriteOffset, wo+a)
	r.post()
	return true
}

// ReadNext mirrors the in-proc ring's readNext (§4.2, §4.4): it inspects
// the entry at the current read offset and passes it by reference to cb,
// which returns true to consume (advance the read offset) or false to
// leave it unchanged.
func (r *Ring) ReadNext(cb func([]byte) bool) bool {
	r.lockByte(lockRead)
	defer r.unlockByte(lockRead)

	ro := r.getOffset(offReadOffset, lockReadOffset)
	wo := r.getOffset(offWriteOffset, lockWriteOffset)
	if r.readable(ro, wo) == 0 {
		return false
	}
	rOff := mod(ro, r.l)

	base := r.payloadOff + rOff
	size := int(binary.LittleEndian.Uint64(r.data[base:]))
	if size == 0 && rOff != 0 {
		ro += r.l - rOff
		rOff = 0
		base = r.payloadOff + rOff
		size = int(binary.LittleEndian.Uint64(r.data[base:]))
	}
	if size == 0 {
		return false
	}

	a := alignUp(sizeFieldSz + size)
	if r.readable(ro, wo) < a {
		return false
	}

	if !cb(r.data[base+sizeFieldSz : base+sizeFieldSz+size]) {
		return false
	}

	r.setOffset(offReadOffset, lockReadOffset, ro+a)
	return true
}

// Wait blocks for the semaphore to be posted, honoring waitMs's
// Infinite(-1)/Nowait(0)/budget-ms encoding (§4.4 "consumers wait on the
// semaphore with either infinite, timed, or nowait semantics").
func (r *Ring) Wait(waitMs int) bool {
	word := (*uint32)(unsafe.Pointer(&r.data[offSem]))
	return semWait(word, waitMs)
}

func (r *Ring) post() {
	word := (*uint32)(unsafe.Pointer(&r.data[offSem]))
	semPost(word)
}

// Close unmaps and closes the backing file descriptor. The segment file
// itself is left on disk: other attachers may still be using it, and
// removing named shared memory is the creator's explicit responsibility,
// not an attachment's.
func (r *Ring) Close() error {
	if err := unix.Munmap(r.data); err != nil {
		r.f.Close()
		return errors.Wrapf(err, "shmring: munmap %s", r.path)
	}
	return r.f.Close()
}
