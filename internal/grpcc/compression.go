// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package grpcc

import (
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"google.golang.org/grpc/encoding"
)

// Gzip is the name of the gzip message compressor
const Gzip = "gzip"

func init() {
	encoding.RegisterCompressor(newGzipCompressor())
}

// gzipCompressor compresses grpc messages with pooled klauspost gzip
// writers and readers
type gzipCompressor struct {
	writers sync.Pool
	readers sync.Pool
}

var _ encoding.Compressor = (*gzipCompressor)(nil)

func newGzipCompressor() *gzipCompressor {
	c := new(gzipCompressor)
	c.writers.New = func() any {
		return &pooledWriter{Writer: gzip.NewWriter(io.Discard), pool: &c.writers}
	}
	return c
}

// Compress implements encoding.Compressor
func (c *gzipCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	writer := c.writers.Get().(*pooledWriter)
	writer.Reset(w)
	return writer, nil
}

// Decompress implements encoding.Compressor
func (c *gzipCompressor) Decompress(r io.Reader) (io.Reader, error) {
	reader, ok := c.readers.Get().(*pooledReader)
	if !ok {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return &pooledReader{Reader: gz, pool: &c.readers}, nil
	}
	if err := reader.Reset(r); err != nil {
		c.readers.Put(reader)
		return nil, err
	}
	return reader, nil
}

// Name implements encoding.Compressor
func (c *gzipCompressor) Name() string {
	return Gzip
}

type pooledWriter struct {
	*gzip.Writer
	pool *sync.Pool
}

// Close flushes the stream and hands the writer back to the pool
func (w *pooledWriter) Close() error {
	defer w.pool.Put(w)
	return w.Writer.Close()
}

type pooledReader struct {
	*gzip.Reader
	pool *sync.Pool
}

// Read hands the reader back to the pool once the stream is exhausted
func (r *pooledReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	if err == io.EOF {
		r.pool.Put(r)
	}
	return n, err
}
