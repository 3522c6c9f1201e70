package link

import "bytes"

// Delimiter terminates every message on the wire.
const Delimiter = '\n'

// FrameBuffer reassembles a byte stream into Delimiter-terminated messages.
// It holds at most one partial message between calls to Next.
// The zero value is ready to use. Not safe for concurrent use.
type FrameBuffer struct {
	buf bytes.Buffer
}

// Write appends p to the buffer. It never returns an error.
func (f *FrameBuffer) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

// Next extracts the first complete message, without its delimiter.
// ok is false when no complete message is buffered.
func (f *FrameBuffer) Next() (msg string, ok bool) {
	i := bytes.IndexByte(f.buf.Bytes(), Delimiter)
	if i < 0 {
		return "", false
	}
	msg = string(f.buf.Next(i))
	f.buf.Next(1)
	return msg, true
}

// Pending returns the undelimited remainder.
func (f *FrameBuffer) Pending() []byte { return f.buf.Bytes() }

// Len reports the number of buffered bytes.
func (f *FrameBuffer) Len() int { return f.buf.Len() }

// Reset discards everything buffered.
func (f *FrameBuffer) Reset() { f.buf.Reset() }
