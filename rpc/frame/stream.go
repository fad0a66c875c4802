package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ValentinKolb/mKV/rpc/common"
)

// maxPrealloc bounds the read buffer growth done up front for one frame.
// Larger frames grow the buffer while the payload is read.
const maxPrealloc = 1 << 20

// flusher is implemented by connections with their own write buffering
type flusher interface {
	Flush() error
}

// Stream turns a duplex byte connection into a sequence of messages.
// Recv may be used by one goroutine while another one uses Send and Flush,
// but neither side is safe for concurrent use on its own.
type Stream struct {
	conn   io.ReadWriteCloser
	codec  *Codec
	rbuf   bytes.Buffer
	wbuf   bytes.Buffer
	header [HeaderSize]byte
}

// NewStream wraps conn. The stream owns conn and closes it on Close.
func NewStream(conn io.ReadWriteCloser, codec *Codec) *Stream {
	return &Stream{
		conn:  conn,
		codec: codec,
	}
}

// Conn returns the wrapped connection
func (s *Stream) Conn() io.ReadWriteCloser {
	return s.conn
}

// Recv reads the next frame from the connection and decodes it into msg.
// It returns io.EOF if the connection ended cleanly between two frames.
func (s *Stream) Recv(msg *common.Message) error {
	s.rbuf.Reset()

	if _, err := io.ReadFull(s.conn, s.header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return common.NewError(common.KindTruncatedFrame, "connection closed inside frame header")
		}
		return fmt.Errorf("read frame header: %w", err)
	}

	length, _ := DecodeHeader(binary.BigEndian.Uint32(s.header[:]))
	if length > s.codec.MaxFrameSize() {
		return common.NewError(common.KindMalformedFrame, "frame length %d exceeds max frame size %d", length, s.codec.MaxFrameSize())
	}

	s.rbuf.Grow(HeaderSize + min(length, maxPrealloc))
	s.rbuf.Write(s.header[:])

	if n, err := io.CopyN(&s.rbuf, s.conn, int64(length)); err != nil {
		if errors.Is(err, io.EOF) {
			return common.NewError(common.KindTruncatedFrame, "connection closed after %d of %d payload bytes", n, length)
		}
		return fmt.Errorf("read frame payload: %w", err)
	}

	return s.codec.Decode(&s.rbuf, msg)
}

// Send encodes msg into the write buffer. Nothing is written to the
// connection until Flush is called.
func (s *Stream) Send(msg *common.Message) error {
	return s.codec.Encode(msg, &s.wbuf)
}

// Flush writes all buffered frames to the connection
func (s *Stream) Flush() error {
	for s.wbuf.Len() > 0 {
		n, err := s.conn.Write(s.wbuf.Bytes())
		s.wbuf.Next(n)
		if err != nil {
			s.wbuf.Reset()
			return fmt.Errorf("write frames: %w", err)
		}
		if n == 0 {
			s.wbuf.Reset()
			return io.ErrShortWrite
		}
	}
	s.wbuf.Reset()

	if f, ok := s.conn.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// SendAndFlush encodes msg and writes it to the connection
func (s *Stream) SendAndFlush(msg *common.Message) error {
	if err := s.Send(msg); err != nil {
		return err
	}
	return s.Flush()
}

// Buffered returns the number of encoded bytes waiting for Flush
func (s *Stream) Buffered() int {
	return s.wbuf.Len()
}

// Close flushes pending frames and closes the connection
func (s *Stream) Close() error {
	return errors.Join(s.Flush(), s.conn.Close())
}
