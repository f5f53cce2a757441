// Copyright © 2015 Daniel Fu <daniel820313@gmail.com>.
// Copyright © 2019 Loki 'l0k18' Verloren <stalker.loki@protonmail.ch>.
// Copyright © 2020 Gridfinity, LLC. <admin@gridfinity.com>.
// Copyright © 2020 Jeffrey H. Johnson <jeff@gridfinity.com>.
//
// All rights reserved.
//
// All use of this code is governed by the MIT license.
// The complete license is available in the LICENSE file.

package gfstp_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/johnsonjh/gfstp"
	u "github.com/johnsonjh/leaktestfe"
	"github.com/pkg/errors"
)

func TestReaderSourceChunks(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	data := bytes.Repeat(
		[]byte("0123456789"),
		25,
	)
	src := gfstp.NewReaderSource(
		bytes.NewReader(data),
		100,
	)
	var got []byte
	var sizes []int
	for {
		b, err := src.NextChunk()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(
				err,
			)
		}
		sizes = append(
			sizes,
			len(b),
		)
		got = append(
			got,
			b...,
		)
	}
	if !bytes.Equal(
		got,
		data,
	) {
		t.Fatal(
			"reassembled data differs",
		)
	}
	if len(sizes) != 3 || sizes[0] != 100 || sizes[2] != 50 {
		t.Fatalf(
			"chunk sizes %v",
			sizes,
		)
	}
	if src.BytesRead() != 250 {
		t.Fatalf(
			"BytesRead = %d",
			src.BytesRead(),
		)
	}
}

func TestWriterSinkContiguity(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	var out bytes.Buffer
	s := gfstp.NewWriterSink(
		&out,
	)
	if err := s.Append(
		0,
		[]byte("abc"),
	); err != nil {
		t.Fatal(
			err,
		)
	}
	if err := s.Append(
		5,
		[]byte("fg"),
	); errors.Cause(
		err,
	) != gfstp.ErrNonContiguousWrite {
		t.Fatalf(
			"gap: %v",
			err,
		)
	}
	if err := s.Append(
		3,
		[]byte("de"),
	); err != nil {
		t.Fatal(
			err,
		)
	}
	if out.String() != "abcde" || s.Written() != 5 {
		t.Fatalf(
			"sink %q written %d",
			out.String(),
			s.Written(),
		)
	}
}

func TestFileSourceAndSink(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	dir := t.TempDir()
	in := filepath.Join(
		dir,
		"in.bin",
	)
	data := bytes.Repeat(
		[]byte{0x5a},
		1000,
	)
	if err := os.WriteFile(
		in,
		data,
		0o644,
	); err != nil {
		t.Fatal(
			err,
		)
	}
	src, err := gfstp.OpenFileSource(
		in,
		300,
	)
	if err != nil {
		t.Fatal(
			err,
		)
	}
	out := filepath.Join(
		dir,
		"nested",
		"out.bin",
	)
	sink, f, err := gfstp.CreateFileSink(
		out,
	)
	if err != nil {
		t.Fatal(
			err,
		)
	}
	var off uint64
	for {
		b, err := src.NextChunk()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(
				err,
			)
		}
		if err := sink.Append(
			off,
			b,
		); err != nil {
			t.Fatal(
				err,
			)
		}
		off += uint64(
			len(b),
		)
	}
	if err := f.Close(); err != nil {
		t.Fatal(
			err,
		)
	}
	got, err := os.ReadFile(
		out,
	)
	if err != nil {
		t.Fatal(
			err,
		)
	}
	if !bytes.Equal(
		got,
		data,
	) {
		t.Fatal(
			"file contents differ",
		)
	}
	if _, _, err := gfstp.CreateFileSink(
		out,
	); errors.Cause(
		err,
	) != gfstp.ErrFileExists {
		t.Fatalf(
			"existing file: %v",
			err,
		)
	}
}
