// Package frame implements the peer protocol's framing on top of a
// raw byte stream: a little-endian u32 length prefix followed by that
// many bytes of payload (spec §4.5).
//
// The shape of Framer mirrors the teacher's channel.IOChannel: a
// buffered reader and writer pair wrapped around a stream, with
// Send/Recv doing one complete frame at a time. Unlike the teacher's
// fixed 8-byte "CP" packet header, this framer carries only the
// 4-byte length prefix the middleware's wire format specifies, and
// the payload is an opaque blob the caller interprets (a serialized
// message, or a service request/response body).
package frame

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame's payload to guard against a
// corrupt or hostile length prefix causing an unbounded allocation.
const MaxFrameSize = 64 << 20 // 64 MiB

// A Framer sends and receives length-prefixed frames over a stream.
// It is safe for one concurrent sender and one concurrent receiver, as
// Recv must not be called concurrently with itself, nor Send with
// itself — matching the single-reader/single-writer discipline of the
// teacher's IOChannel.
type Framer struct {
	r *bufio.Reader
	w *bufio.Writer
	c io.Closer
}

// New constructs a Framer that reads frames from r and writes them to
// wc, closing wc when Close is called.
func New(r io.Reader, wc io.WriteCloser) *Framer {
	return &Framer{r: bufio.NewReader(r), w: bufio.NewWriter(wc), c: wc}
}

// Send writes one frame: a u32 length prefix followed by payload.
func (f *Framer) Send(payload []byte) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := f.w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := f.w.Write(payload); err != nil {
			return err
		}
	}
	return f.w.Flush()
}

// Recv reads and returns one complete frame's payload. It returns an
// error (often io.EOF) if the stream ends before a full frame is
// available; per spec §4.5, a partial tail is never delivered as a
// payload — Recv simply reports the underlying read error in that
// case, and the caller is expected to treat the connection as ended.
func (f *Framer) Recv() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(f.r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("frame: payload length %d exceeds maximum %d", n, MaxFrameSize)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		return nil, fmt.Errorf("frame: short payload: %w", err)
	}
	return payload, nil
}

// Close closes the underlying stream.
func (f *Framer) Close() error { return f.c.Close() }

// SendServiceSuccess writes the service-response framing for a
// successful call: success byte 1, then a u32 length prefix and the
// serialized response bytes (spec §4.5/§4.8).
func (f *Framer) SendServiceSuccess(response []byte) error {
	return f.sendServiceResult(1, response)
}

// SendServiceFailure writes the service-response framing for a failed
// call: success byte 0, then a u32 length prefix and the
// human-readable error message bytes.
func (f *Framer) SendServiceFailure(errMsg string) error {
	return f.sendServiceResult(0, []byte(errMsg))
}

func (f *Framer) sendServiceResult(ok byte, body []byte) error {
	if err := f.w.WriteByte(ok); err != nil {
		return err
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(body)))
	if _, err := f.w.Write(hdr[:]); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := f.w.Write(body); err != nil {
			return err
		}
	}
	return f.w.Flush()
}

// RecvServiceResult reads the service-response framing: a success
// byte followed by a u32-length-prefixed body. ok reports the success
// byte's value; body is the response bytes on success or the error
// message bytes on failure.
func (f *Framer) RecvServiceResult() (ok bool, body []byte, err error) {
	b, err := f.r.ReadByte()
	if err != nil {
		return false, nil, err
	}
	var hdr [4]byte
	if _, err := io.ReadFull(f.r, hdr[:]); err != nil {
		return false, nil, fmt.Errorf("frame: short service result length: %w", err)
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return false, nil, fmt.Errorf("frame: service result length %d exceeds maximum %d", n, MaxFrameSize)
	}
	body = make([]byte, n)
	if _, err := io.ReadFull(f.r, body); err != nil {
		return false, nil, fmt.Errorf("frame: short service result body: %w", err)
	}
	return b == 1, body, nil
}
