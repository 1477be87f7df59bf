package clogger

import "testing"

func TestRingWriteReadRoundTrip(t *testing.T) {
	assert := newAsserter(t, "round-trip")

	rb := newRingBuffer(256)
	payload := []byte("hello world")

	wr := rb.write(encodedRecordSize("", payload), func(dst []byte) {
		encodeRecord(dst, Info, "", payload)
	})
	assert(wr == RingWritten, "write: exp Written, saw %d", wr)

	var got []byte
	rr := rb.readNext(func(raw []byte) bool {
		rec, ok := decodeRecord(raw)
		assert(ok, "decode failed")
		got = append([]byte(nil), rec.Payload...)
		return true
	})
	assert(rr == ReadNext, "read: exp Next, saw %d", rr)
	assert(string(got) == string(payload), "payload: exp %q, saw %q", payload, got)

	rr = rb.readNext(func([]byte) bool { return true })
	assert(rr == ReadAgain, "read on empty ring: exp Again, saw %d", rr)
}

func TestRingMinimumQueueLength(t *testing.T) {
	// §8 boundary: queueLength = 2 (minimum), a single entry sized at the
	// maximum that fits must round-trip.
	assert := newAsserter(t, "min queue length")

	l := 16
	rb := newRingBuffer(l)
	payload := make([]byte, l-recordHeaderLen)
	for i := range payload {
		payload[i] = byte(i)
	}

	size := encodedRecordSize("", payload)
	assert(size <= l, "entry %d must fit within ring of %d", size, l)

	wr := rb.write(size, func(dst []byte) { encodeRecord(dst, Info, "", payload) })
	assert(wr == RingWritten, "write: exp Written, saw %d", wr)

	var got []byte
	rr := rb.readNext(func(raw []byte) bool {
		rec, _ := decodeRecord(raw)
		got = rec.Payload
		return true
	})
	assert(rr == ReadNext, "read: exp Next, saw %d", rr)
	assert(len(got) == len(payload), "payload len: exp %d, saw %d", len(payload), len(got))
}

func TestRingReadableWritableInvariant(t *testing.T) {
	assert := newAsserter(t, "readable+writable")

	rb := newRingBuffer(128)
	for i := 0; i < 20; i++ {
		r := int(rb.r.Load())
		w := int(rb.w.Load())
		readable := rb.readable(r, w)
		writable := rb.writable(r, w)
		assert(readable >= 0 && readable <= rb.l, "readable out of range: %d", readable)
		assert(writable >= 0 && writable <= rb.l, "writable out of range: %d", writable)
		assert(readable+writable == rb.l, "readable+writable != L: %d+%d != %d", readable, writable, rb.l)

		rb.write(16, func(dst []byte) { encodeRecord(dst, Info, "", []byte("x")) })
		rb.readNext(func([]byte) bool { return true })
	}
}

func TestRingWriteTooLargeIsFatal(t *testing.T) {
	assert := newAsserter(t, "oversize entry")

	rb := newRingBuffer(32)
	wr := rb.write(1024, func([]byte) {})
	assert(wr == RingFatal, "exp RingFatal, saw %d", wr)
}

func TestRingWrapsAtPhysicalEnd(t *testing.T) {
	// Ring of 64 bytes, two 24-byte entries use 48 of its 64 bytes;
	// draining both leaves W at offset 48 with only a 16-byte tail
	// gap. The next 24-byte entry can't fit there, so the writer must
	// zero the gap and restart the entry at physical offset 0.
	assert := newAsserter(t, "wrap")

	rb := newRingBuffer(64)
	small := make([]byte, 8)

	for i := 0; i < 2; i++ {
		wr := rb.write(encodedRecordSize("", small), func(dst []byte) { encodeRecord(dst, Info, "", small) })
		assert(wr == RingWritten, "fill write %d: exp Written, saw %d", i, wr)
	}
	for i := 0; i < 2; i++ {
		rr := rb.readNext(func([]byte) bool { return true })
		assert(rr == ReadNext, "drain read %d: exp Next, saw %d", i, rr)
	}

	wOffBefore := int(rb.w.Load()) % rb.l
	assert(rb.l-wOffBefore < 24, "test setup: expected a tail gap smaller than 24, got %d", rb.l-wOffBefore)

	wr := rb.write(encodedRecordSize("", small), func(dst []byte) { encodeRecord(dst, Info, "", small) })
	assert(wr == RingWritten, "wrap write: exp Written, saw %d", wr)

	var got []byte
	rr := rb.readNext(func(raw []byte) bool {
		rec, ok := decodeRecord(raw)
		assert(ok, "decode after wrap failed")
		got = rec.Payload
		return true
	})
	assert(rr == ReadNext, "read after wrap: exp Next, saw %d", rr)
	assert(len(got) == len(small), "payload len after wrap: exp %d, saw %d", len(small), len(got))
}
