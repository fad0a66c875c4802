package frame

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"

	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/serializer"
	"github.com/VictoriaMetrics/metrics"
	"github.com/klauspost/compress/gzip"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("frame")

const (
	// HeaderSize is the size of the length header in front of every frame
	HeaderSize = 4

	// CompressionBit flags a gzip compressed payload in the header
	CompressionBit uint32 = 1 << 31

	// MaxFrameSize is the largest payload length the 31 bit header can carry
	MaxFrameSize = 1<<31 - 1

	// CompressionLimit is the serialized size above which payloads are
	// compressed. It keeps a frame of an uncompressed message within one
	// ethernet MTU.
	CompressionLimit = 1436
)

var (
	framesEncoded     = metrics.NewCounter(`mkv_frames_encoded_total`)
	framesDecoded     = metrics.NewCounter(`mkv_frames_decoded_total`)
	framesCompressed  = metrics.NewCounter(`mkv_frames_compressed_total`)
	frameBytesEncoded = metrics.NewCounter(`mkv_frame_bytes_encoded_total`)
	frameErrors       = metrics.NewCounter(`mkv_frame_errors_total`)
)

// Options configures a Codec
type Options struct {
	// CompressionLimit is the serialized size in bytes above which the payload is gzip compressed
	CompressionLimit int
	// MaxFrameSize is the largest accepted payload length (capped at MaxFrameSize)
	MaxFrameSize int
	// CompressionLevel is the gzip level used for large payloads
	CompressionLevel int
}

// DefaultOptions returns the options used on the wire by default
func DefaultOptions() *Options {
	return &Options{
		CompressionLimit: CompressionLimit,
		MaxFrameSize:     MaxFrameSize,
		CompressionLevel: gzip.DefaultCompression,
	}
}

// OptionsFromConf converts the frame section of a server or client config
func OptionsFromConf(c common.FrameConf) *Options {
	return &Options{
		CompressionLimit: c.CompressionLimit,
		MaxFrameSize:     c.MaxFrameSize,
		CompressionLevel: c.CompressionLevel,
	}
}

// Codec encodes messages into frames and decodes frames into messages.
// A Codec is safe for concurrent use, the buffers passed to it are not.
type Codec struct {
	serializer serializer.IRPCSerializer
	opts       Options
	writers    sync.Pool
	readers    sync.Pool
}

// NewCodec creates a codec using the given serializer. nil options use DefaultOptions.
func NewCodec(s serializer.IRPCSerializer, opts *Options) *Codec {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.MaxFrameSize <= 0 || o.MaxFrameSize > MaxFrameSize {
		o.MaxFrameSize = MaxFrameSize
	}
	if o.CompressionLimit <= 0 {
		o.CompressionLimit = CompressionLimit
	}
	if o.CompressionLevel == 0 {
		o.CompressionLevel = gzip.DefaultCompression
	}

	c := &Codec{serializer: s, opts: o}
	c.writers.New = func() interface{} {
		w, err := gzip.NewWriterLevel(nil, o.CompressionLevel)
		if err != nil {
			// invalid level, fall back to the default
			w = gzip.NewWriter(nil)
		}
		return w
	}
	return c
}

// MaxFrameSize returns the largest payload length accepted by this codec
func (c *Codec) MaxFrameSize() int {
	return c.opts.MaxFrameSize
}

// --------------------------------------------------------------------------
// Header
// --------------------------------------------------------------------------

// EncodeHeader builds a frame header from a payload length and the compression flag
func EncodeHeader(length int, compressed bool) uint32 {
	h := uint32(length) &^ CompressionBit
	if compressed {
		h |= CompressionBit
	}
	return h
}

// DecodeHeader splits a frame header into payload length and compression flag
func DecodeHeader(h uint32) (length int, compressed bool) {
	return int(h &^ CompressionBit), h&CompressionBit != 0
}

// --------------------------------------------------------------------------
// Encode / Decode
// --------------------------------------------------------------------------

// Encode appends one frame holding msg to buf. On error buf is left unchanged.
func (c *Codec) Encode(msg *common.Message, buf *bytes.Buffer) error {
	data, err := c.serializer.Serialize(*msg)
	if err != nil {
		frameErrors.Inc()
		return common.NewError(common.KindSerializationError, "serialize %s: %v", msg.MsgType, err)
	}

	n := len(data)
	if n > c.opts.MaxFrameSize {
		frameErrors.Inc()
		return common.NewError(common.KindFrameTooLarge, "message of %d bytes exceeds max frame size %d", n, c.opts.MaxFrameSize)
	}

	start := buf.Len()

	// the header assumes an uncompressed payload and is rewritten after compression
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[:], EncodeHeader(n, false))
	buf.Write(header[:])

	if n <= c.opts.CompressionLimit {
		buf.Write(data)
	} else {
		if err := c.compress(data, buf); err != nil {
			buf.Truncate(start)
			frameErrors.Inc()
			return common.NewError(common.KindCompressionError, "compress %d bytes: %v", n, err)
		}

		compressed := buf.Len() - start - HeaderSize
		if compressed > c.opts.MaxFrameSize {
			buf.Truncate(start)
			frameErrors.Inc()
			return common.NewError(common.KindFrameTooLarge, "compressed message of %d bytes exceeds max frame size %d", compressed, c.opts.MaxFrameSize)
		}
		binary.BigEndian.PutUint32(buf.Bytes()[start:start+HeaderSize], EncodeHeader(compressed, true))

		framesCompressed.Inc()
		Logger.Debugf("compressed %s frame from %d to %d bytes", msg.MsgType, n, compressed)
	}

	framesEncoded.Inc()
	frameBytesEncoded.Add(buf.Len() - start)
	return nil
}

// Decode reads one frame from the front of buf into msg.
// If buf holds less than a full frame, TruncatedFrame is returned and nothing
// is consumed. A complete frame is consumed exactly once, even if it cannot
// be decoded.
func (c *Codec) Decode(buf *bytes.Buffer, msg *common.Message) error {
	if buf.Len() < HeaderSize {
		return common.NewError(common.KindTruncatedFrame, "need %d header bytes, have %d", HeaderSize, buf.Len())
	}

	raw := buf.Bytes()
	length, compressed := DecodeHeader(binary.BigEndian.Uint32(raw[:HeaderSize]))
	if length > c.opts.MaxFrameSize {
		frameErrors.Inc()
		return common.NewError(common.KindMalformedFrame, "frame length %d exceeds max frame size %d", length, c.opts.MaxFrameSize)
	}
	if len(raw) < HeaderSize+length {
		return common.NewError(common.KindTruncatedFrame, "need %d payload bytes, have %d", length, len(raw)-HeaderSize)
	}

	// deserializers copy what they keep, so the payload can stay in buf until the frame is consumed
	defer buf.Next(HeaderSize + length)
	payload := raw[HeaderSize : HeaderSize+length]

	if compressed {
		data, err := c.decompress(payload)
		if err != nil {
			frameErrors.Inc()
			return err
		}
		payload = data
	}

	if err := c.serializer.Deserialize(payload, msg); err != nil {
		frameErrors.Inc()
		return common.NewError(common.KindSerializationError, "deserialize frame of %d bytes: %v", len(payload), err)
	}

	framesDecoded.Inc()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (c *Codec) compress(data []byte, dst *bytes.Buffer) error {
	w := c.writers.Get().(*gzip.Writer)
	defer c.writers.Put(w)

	w.Reset(dst)
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.Close()
}

func (c *Codec) decompress(payload []byte) ([]byte, error) {
	var (
		r   *gzip.Reader
		err error
	)
	if pooled, ok := c.readers.Get().(*gzip.Reader); ok {
		r = pooled
		err = r.Reset(bytes.NewReader(payload))
	} else {
		r, err = gzip.NewReader(bytes.NewReader(payload))
	}
	if err != nil {
		return nil, common.NewError(common.KindCompressionError, "invalid gzip header: %v", err)
	}
	defer c.readers.Put(r)

	// a decompressed message must obey the same limit as an uncompressed one
	data, err := io.ReadAll(io.LimitReader(r, int64(c.opts.MaxFrameSize)+1))
	if err != nil {
		return nil, common.NewError(common.KindCompressionError, "decompress: %v", err)
	}
	if len(data) > c.opts.MaxFrameSize {
		return nil, common.NewError(common.KindFrameTooLarge, "decompressed message exceeds max frame size %d", c.opts.MaxFrameSize)
	}
	return data, nil
}
