package codec

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/kjk/filedump/u"
	"github.com/klauspost/compress/zstd"
)

// compressed wraps a codec and compresses its output
type compressed[T any] struct {
	inner      Codec[T]
	name       string
	compress   func([]byte) ([]byte, error)
	decompress func([]byte) ([]byte, error)
}

func (c *compressed[T]) Encode(v T) ([]byte, error) {
	d, err := c.inner.Encode(v)
	if err != nil {
		return nil, err
	}
	return c.compress(d)
}

func (c *compressed[T]) Decode(d []byte) (T, error) {
	d, err := c.decompress(d)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.inner.Decode(d)
}

func (c *compressed[T]) Name() string {
	return c.inner.Name() + "+" + c.name
}

// encoders and decoders created with nil writer / reader are safe
// for concurrent EncodeAll / DecodeAll
var zstdEncoder, zstdDecoder = newZstd()

func newZstd() (*zstd.Encoder, *zstd.Decoder) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	u.PanicIfErr(err, "zstd.NewWriter")
	dec, err := zstd.NewReader(nil)
	u.PanicIfErr(err, "zstd.NewReader")
	return enc, dec
}

// Zstd compresses each record with zstd
func Zstd[T any](inner Codec[T]) Codec[T] {
	return &compressed[T]{
		inner: inner,
		name:  "zstd",
		compress: func(d []byte) ([]byte, error) {
			return zstdEncoder.EncodeAll(d, nil), nil
		},
		decompress: func(d []byte) ([]byte, error) {
			return zstdDecoder.DecodeAll(d, nil)
		},
	}
}

// Brotli compresses each record with brotli
func Brotli[T any](inner Codec[T]) Codec[T] {
	return &compressed[T]{
		inner: inner,
		name:  "br",
		compress: func(d []byte) ([]byte, error) {
			var buf bytes.Buffer
			w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
			if _, err := w.Write(d); err != nil {
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		decompress: func(d []byte) ([]byte, error) {
			return io.ReadAll(brotli.NewReader(bytes.NewReader(d)))
		},
	}
}

// Gzip compresses each record with gzip
func Gzip[T any](inner Codec[T]) Codec[T] {
	return &compressed[T]{
		inner: inner,
		name:  "gzip",
		compress: func(d []byte) ([]byte, error) {
			var buf bytes.Buffer
			w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
			if err != nil {
				return nil, err
			}
			if _, err = w.Write(d); err != nil {
				return nil, err
			}
			if err = w.Close(); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		decompress: func(d []byte) ([]byte, error) {
			r, err := gzip.NewReader(bytes.NewReader(d))
			if err != nil {
				return nil, err
			}
			defer r.Close()
			return io.ReadAll(r)
		},
	}
}
