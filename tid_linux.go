//go:build linux

package clogger

import "golang.org/x/sys/unix"

// threadID returns the kernel thread id of the calling OS thread, used
// for the Dated layout's optional "[pid/tid]" field (§4.5). Go does not
// pin goroutines to OS threads, so this reflects whichever thread is
// currently running the calling goroutine, same as the C library's
// gettid() on a thread that may itself be reused by the scheduler.
func threadID() int {
	return unix.Gettid()
}
