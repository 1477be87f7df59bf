//go:build !linux

package shmring

import (
	"sync/atomic"
	"time"
)

// semPost and semWait fall back to atomic-counter polling on platforms
// without a process-shared futex (§4.4 "Platform variants differ only in
// the OS primitives used").
func semPost(word *uint32) {
	atomic.AddUint32(word, 1)
}

func semWait(word *uint32, waitMs int) bool {
	const pollEvery = 2 * time.Millisecond

	deadline := time.Time{}
	if waitMs > 0 {
		deadline = time.Now().Add(time.Duration(waitMs) * time.Millisecond)
	}

	for {
		cur := atomic.LoadUint32(word)
		if cur != 0 && atomic.CompareAndSwapUint32(word, cur, cur-1) {
			return true
		}

		if waitMs == 0 {
			return false
		}
		if waitMs > 0 && time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollEvery)
	}
}
