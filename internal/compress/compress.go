// Package compress implements the compression codec collaborator (§6):
// deflate/gzip via the standard library's compress/flate and
// compress/gzip, zstd via klauspost/compress, brotli via andybalholm/brotli,
// lz4 via pierrec/lz4/v4, lzma via ulikunitz/xz, and bzip2 decode-only via
// the standard library (no ecosystem bzip2 encoder exists in the pack or
// is commonly used — see the grounding ledger).
package compress

import (
	"bytes"
	"compress/bzip2"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"
)

// Method names the wire compression algorithm (§3 "Compression Method").
type Method string

const (
	MethodNone    Method = "identity"
	MethodDeflate Method = "deflate"
	MethodGzip    Method = "gzip"
	MethodBrotli  Method = "br"
	MethodZstd    Method = "zstd"
	MethodLZ4     Method = "lz4"
	MethodLZMA    Method = "lzma"
	MethodBzip2   Method = "bzip2"
)

// Codec compresses/decompresses full in-memory buffers. The websocket
// permessage-deflate path uses the narrower DeflateCodec contract in
// wsframe instead so that package doesn't need to import this one.
type Codec interface {
	Compress(in []byte) ([]byte, error)
	Decompress(in []byte) ([]byte, error)
}

// ErrEncodeNotSupported is returned by Compress for decode-only codecs
// (currently bzip2, §4.2 "Content-Encoding").
var ErrEncodeNotSupported = fmt.Errorf("compress: encoding not supported for this method")

// ForMethod returns the Codec implementing method.
func ForMethod(m Method) (Codec, error) {
	switch m {
	case MethodNone:
		return identityCodec{}, nil
	case MethodDeflate:
		return deflateCodec{}, nil
	case MethodGzip:
		return gzipCodec{}, nil
	case MethodBrotli:
		return brotliCodec{}, nil
	case MethodZstd:
		return zstdCodec{}, nil
	case MethodLZ4:
		return lz4Codec{}, nil
	case MethodLZMA:
		return lzmaCodec{}, nil
	case MethodBzip2:
		return bzip2Codec{}, nil
	default:
		return nil, fmt.Errorf("compress: unknown method %q", m)
	}
}

type identityCodec struct{}

func (identityCodec) Compress(in []byte) ([]byte, error)   { return in, nil }
func (identityCodec) Decompress(in []byte) ([]byte, error) { return in, nil }

type deflateCodec struct{}

func (deflateCodec) Compress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (deflateCodec) Decompress(in []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(in))
	defer r.Close()
	return io.ReadAll(r)
}

// CompressDeflate/DecompressDeflate satisfy the wsframe.DeflateCodec
// contract used by permessage-deflate (§4.1); windowBits is accepted for
// interface compatibility but compress/flate always uses a 32K window.
func (deflateCodec) CompressDeflate(in []byte, windowBits int) ([]byte, error) {
	return deflateCodec{}.Compress(in)
}

func (deflateCodec) DecompressDeflate(in []byte, windowBits int) ([]byte, error) {
	return deflateCodec{}.Decompress(in)
}

type gzipCodec struct{}

func (gzipCodec) Compress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Decompress(in []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

type brotliCodec struct{}

func (brotliCodec) Compress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (brotliCodec) Decompress(in []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(in))
	return io.ReadAll(r)
}

type zstdCodec struct{}

func (zstdCodec) Compress(in []byte) ([]byte, error) {
	w, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer w.Close()
	return w.EncodeAll(in, nil), nil
}

func (zstdCodec) Decompress(in []byte) ([]byte, error) {
	d, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return d.DecodeAll(in, nil)
}

type lz4Codec struct{}

func (lz4Codec) Compress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Decompress(in []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(in))
	return io.ReadAll(r)
}

type lzmaCodec struct{}

func (lzmaCodec) Compress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lzmaCodec) Decompress(in []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

type bzip2Codec struct{}

func (bzip2Codec) Compress(in []byte) ([]byte, error) { return nil, ErrEncodeNotSupported }

func (bzip2Codec) Decompress(in []byte) ([]byte, error) {
	return io.ReadAll(bzip2.NewReader(bytes.NewReader(in)))
}
