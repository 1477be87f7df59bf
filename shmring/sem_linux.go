//go:build linux

package shmring

import (
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// semPost increments the shared counting semaphore word and wakes one
// waiter blocked in the kernel futex queue (§4.4 "Posting the semaphore
// is an explicit step after a successful write").
func semPost(word *uint32) {
	atomic.AddUint32(word, 1)
	unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(word)), uintptr(unix.FUTEX_WAKE), 1, 0, 0, 0)
}

// semWait blocks until word becomes non-zero, then atomically decrements
// it, honoring Infinite(-1)/Nowait(0)/budget-ms. It uses a non-private
// FUTEX_WAIT on the shared mapping, so a semPost from any process that maps
// the segment can wake it, not just goroutines in this one.
func semWait(word *uint32, waitMs int) bool {
	deadline := time.Time{}
	if waitMs > 0 {
		deadline = time.Now().Add(time.Duration(waitMs) * time.Millisecond)
	}

	for {
		for {
			cur := atomic.LoadUint32(word)
			if cur == 0 {
				break
			}
			if atomic.CompareAndSwapUint32(word, cur, cur-1) {
				return true
			}
		}

		if waitMs == 0 {
			return false
		}

		var ts *unix.Timespec
		if waitMs > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return false
			}
			if remaining > 100*time.Millisecond {
				remaining = 100 * time.Millisecond
			}
			t := unix.NsecToTimespec(remaining.Nanoseconds())
			ts = &t
		} else {
			t := unix.NsecToTimespec((100 * time.Millisecond).Nanoseconds())
			ts = &t
		}

		unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(word)), uintptr(unix.FUTEX_WAIT), 0,
			uintptr(unsafe.Pointer(ts)), 0, 0)
	}
}
