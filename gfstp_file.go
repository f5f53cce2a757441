// Copyright © 2015 Daniel Fu <daniel820313@gmail.com>.
// Copyright © 2019 Loki 'l0k18' Verloren <stalker.loki@protonmail.ch>.
// Copyright © 2020 Gridfinity, LLC. <admin@gridfinity.com>.
// Copyright © 2020 Jeffrey H. Johnson <jeff@gridfinity.com>.
//
// All rights reserved.
//
// All use of this code is governed by the MIT license.
// The complete license is available in the LICENSE file.

package gfstp // import "github.com/johnsonjh/gfstp"

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Source supplies outgoing payload. NextChunk returns io.EOF once the
// data is exhausted.
type Source interface {
	NextChunk() ([]byte, error)
}

// Sink accepts delivered bytes in strictly increasing, contiguous order.
type Sink interface {
	Append(
		offset uint64,
		b []byte,
	) error
}

// ReaderSource cuts an io.Reader into chunks of at most Chunk bytes.
type ReaderSource struct {
	r     *bufio.Reader
	c     io.Closer
	chunk int
	read  uint64
}

// NewReaderSource wraps r. If r is an io.Closer it is closed at EOF.
func NewReaderSource(
	r io.Reader,
	chunk int,
) *ReaderSource {
	if chunk <= 0 {
		chunk = GfstpMtuDef
	}
	s := &ReaderSource{
		r: bufio.NewReaderSize(
			r,
			chunk*GfstpWndDef,
		),
		chunk: chunk,
	}
	if c, ok := r.(io.Closer); ok {
		s.c = c
	}
	return s
}

// OpenFileSource opens path for reading in chunk-sized pieces.
func OpenFileSource(
	path string,
	chunk int,
) (
	*ReaderSource,
	error,
) {
	f, err := os.Open(
		path,
	)
	if err != nil {
		return nil, errors.Wrap(
			err,
			"os.Open",
		)
	}
	return NewReaderSource(
		f,
		chunk,
	), nil
}

// NextChunk implements Source.
func (
	s *ReaderSource,
) NextChunk() (
	[]byte,
	error,
) {
	buf := make(
		[]byte,
		s.chunk,
	)
	n, err := io.ReadFull(
		s.r,
		buf,
	)
	s.read += uint64(
		n,
	)
	switch err {
	case nil:
		return buf, nil
	case io.ErrUnexpectedEOF:
		return buf[:n], nil
	case io.EOF:
		if s.c != nil {
			s.c.Close()
			s.c = nil
		}
		return nil, io.EOF
	}
	return nil, errors.Wrap(
		err,
		"io.ReadFull",
	)
}

// BytesRead returns the number of bytes handed out so far.
func (
	s *ReaderSource,
) BytesRead() uint64 {
	return s.read
}

// WriterSink appends to an io.Writer and enforces contiguity.
type WriterSink struct {
	w    io.Writer
	next uint64
	base uint64
	set  bool
}

// NewWriterSink wraps w.
func NewWriterSink(
	w io.Writer,
) *WriterSink {
	return &WriterSink{
		w: w,
	}
}

// CreateFileSink creates path, and any missing parent directories, for
// writing. An existing file is never overwritten.
func CreateFileSink(
	path string,
) (
	*WriterSink,
	*os.File,
	error,
) {
	if dir := filepath.Dir(
		path,
	); dir != "" {
		if err := os.MkdirAll(
			dir,
			0o755,
		); err != nil {
			return nil, nil, errors.Wrap(
				err,
				"os.MkdirAll",
			)
		}
	}
	f, err := os.OpenFile(
		path,
		os.O_WRONLY|os.O_CREATE|os.O_EXCL,
		0o644,
	)
	if err != nil {
		if os.IsExist(
			err,
		) {
			return nil, nil, errors.Wrap(
				ErrFileExists,
				path,
			)
		}
		return nil, nil, errors.Wrap(
			err,
			"os.OpenFile",
		)
	}
	return NewWriterSink(
		f,
	), f, nil
}

// Append implements Sink. The first call fixes the base offset; every
// later call must continue exactly where the previous one ended.
func (
	s *WriterSink,
) Append(
	offset uint64,
	b []byte,
) error {
	if !s.set {
		s.base = offset
		s.next = offset
		s.set = true
	}
	if offset != s.next {
		return errors.Wrapf(
			ErrNonContiguousWrite,
			"offset %d, expected %d",
			offset,
			s.next,
		)
	}
	n, err := s.w.Write(
		b,
	)
	s.next += uint64(
		n,
	)
	if err != nil {
		return errors.Wrap(
			err,
			"write",
		)
	}
	return nil
}

// Written returns the number of bytes accepted.
func (
	s *WriterSink,
) Written() uint64 {
	return s.next - s.base
}
