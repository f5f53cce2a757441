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
	"strings"
	"testing"

	"github.com/johnsonjh/gfstp"
	u "github.com/johnsonjh/leaktestfe"
	"github.com/pkg/errors"
)

func sampleSegments() []*gfstp.Segment {
	return []*gfstp.Segment{
		{
			Seq:   0,
			Flags: gfstp.FlagSYN,
		},
		{
			Seq:       0,
			Ack:       1,
			Timestamp: 123456789,
			Flags:     gfstp.FlagSYN | gfstp.FlagACK,
		},
		{
			Seq:       1,
			Ack:       1,
			Timestamp: -42,
			Flags:     gfstp.FlagACK,
			Payload: []byte(
				"hello, world",
			),
		},
		{
			Seq:       0xfffffff0,
			Ack:       0xdeadbeef,
			Timestamp: 1<<62 + 7,
			Flags:     gfstp.FlagFIN | gfstp.FlagACK,
			Payload: bytes.Repeat(
				[]byte{
					0xff,
				},
				101,
			),
		},
	}
}

func TestSegmentRoundTrip(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	for _, seg := range sampleSegments() {
		frame, err := seg.Encode(
			gfstp.GfstpMtuDef,
		)
		if err != nil {
			t.Fatal(
				err,
			)
		}
		if len(
			frame,
		) != gfstp.GfstpOverhead+seg.Len() {
			t.Fatalf(
				"frame length %d, want %d",
				len(frame),
				gfstp.GfstpOverhead+seg.Len(),
			)
		}
		if !gfstp.Validate(
			frame,
		) {
			t.Fatalf(
				"%v: encoded frame does not validate",
				seg,
			)
		}
		got, err := gfstp.DecodeSegment(
			frame,
		)
		if err != nil {
			t.Fatal(
				err,
			)
		}
		if got.Seq != seg.Seq || got.Ack != seg.Ack ||
			got.Timestamp != seg.Timestamp || got.Flags != seg.Flags ||
			!bytes.Equal(
				got.Payload,
				seg.Payload,
			) {
			t.Fatalf(
				"decoded %+v, want %+v",
				got,
				seg,
			)
		}
	}
}

func TestSegmentWireLayout(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	seg := &gfstp.Segment{
		Seq:       0x01020304,
		Ack:       0x05060708,
		Timestamp: 0x1112131415161718,
		Flags:     gfstp.FlagSYN | gfstp.FlagACK,
		Payload: []byte{
			0xaa,
			0xbb,
			0xcc,
		},
	}
	frame, err := seg.Encode(
		16,
	)
	if err != nil {
		t.Fatal(
			err,
		)
	}
	want := []byte{
		0x01, 0x02, 0x03, 0x04,
		0x05, 0x06, 0x07, 0x08,
		0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18,
		0x00, 0x00, 0x00, 3<<3 | 0x5,
		0x00, 0x00,
	}
	if !bytes.Equal(
		frame[:22],
		want,
	) {
		t.Fatalf(
			"header % x, want % x",
			frame[:22],
			want,
		)
	}
	if !bytes.Equal(
		frame[24:],
		seg.Payload,
	) {
		t.Fatalf(
			"payload % x",
			frame[24:],
		)
	}
	zeroed := append(
		[]byte(nil),
		frame...,
	)
	zeroed[22], zeroed[23] = 0, 0
	sum := gfstp.Checksum(
		zeroed,
	)
	if uint16(frame[22])<<8|uint16(frame[23]) != sum {
		t.Fatalf(
			"checksum field %02x%02x, want %04x",
			frame[22],
			frame[23],
			sum,
		)
	}
}

func TestChecksumOddLength(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	// 0x0102 + 0x0300 = 0x0402, complemented.
	if got := gfstp.Checksum(
		[]byte{
			0x01,
			0x02,
			0x03,
		},
	); got != ^uint16(0x0402) {
		t.Fatalf(
			"Checksum = %04x",
			got,
		)
	}
	// End-around carry: 0xffff + 0x0001 folds to 0x0001.
	if got := gfstp.Checksum(
		[]byte{
			0xff,
			0xff,
			0x00,
			0x01,
		},
	); got != ^uint16(0x0001) {
		t.Fatalf(
			"Checksum = %04x",
			got,
		)
	}
}

func TestSegmentSingleBitCorruption(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	for _, seg := range sampleSegments() {
		frame, err := seg.Encode(
			gfstp.GfstpMtuDef,
		)
		if err != nil {
			t.Fatal(
				err,
			)
		}
		for i := 0; i < len(frame)*8; i++ {
			bad := append(
				[]byte(nil),
				frame...,
			)
			bad[i/8] ^= 1 << uint(i%8)
			if gfstp.Validate(
				bad,
			) {
				t.Fatalf(
					"%v: flipping bit %d went unnoticed",
					seg,
					i,
				)
			}
			got, err := gfstp.DecodeSegment(
				bad,
			)
			if got != nil || errors.Cause(
				err,
			) != gfstp.ErrCorruptSegment {
				t.Fatalf(
					"bit %d: DecodeSegment = %v, %v",
					i,
					got,
					err,
				)
			}
		}
	}
}

func TestSegmentMalformed(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	if _, err := gfstp.DecodeSegment(
		make(
			[]byte,
			gfstp.GfstpOverhead-1,
		),
	); errors.Cause(
		err,
	) != gfstp.ErrCorruptSegment {
		t.Fatalf(
			"short frame: %v",
			err,
		)
	}
	seg := &gfstp.Segment{
		Seq:   1,
		Flags: gfstp.FlagACK,
		Payload: []byte(
			"abcd",
		),
	}
	frame, err := seg.Encode(
		4,
	)
	if err != nil {
		t.Fatal(
			err,
		)
	}
	// Length word says 4, frame carries 2; checksum recomputed to match.
	lying := append(
		[]byte(nil),
		frame[:len(frame)-2]...,
	)
	lying[22], lying[23] = 0, 0
	sum := gfstp.Checksum(
		lying,
	)
	lying[22], lying[23] = byte(sum>>8), byte(sum)
	if _, err := gfstp.DecodeSegment(
		lying,
	); errors.Cause(
		err,
	) != gfstp.ErrCorruptSegment {
		t.Fatalf(
			"length mismatch: %v",
			err,
		)
	}
}

func TestSegmentOversizedPayload(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	seg := &gfstp.Segment{
		Payload: make(
			[]byte,
			101,
		),
	}
	if _, err := seg.Encode(
		100,
	); errors.Cause(
		err,
	) != gfstp.ErrOversizedPayload {
		t.Fatalf(
			"Encode = %v",
			err,
		)
	}
	if _, err := seg.Encode(
		101,
	); err != nil {
		t.Fatal(
			err,
		)
	}
}

func TestSegmentTrace(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	seg := &gfstp.Segment{
		Seq:   101,
		Ack:   1,
		Flags: gfstp.FlagACK,
		Payload: make(
			[]byte,
			100,
		),
	}
	got := seg.Trace(
		"snd",
		1500000000,
	)
	if want := "snd 1.500 - A - D 101 100 1"; got != want {
		t.Fatalf(
			"Trace = %q, want %q",
			got,
			want,
		)
	}
	syn := &gfstp.Segment{
		Flags: gfstp.FlagSYN,
	}
	if !strings.HasPrefix(
		syn.Trace(
			"rcv",
			0,
		),
		"rcv 0.000 S - - - 0 0 0",
	) {
		t.Fatal(
			syn.Trace(
				"rcv",
				0,
			),
		)
	}
}

func BenchmarkSegmentEncode(
	b *testing.B,
) {
	seg := &gfstp.Segment{
		Seq:   1,
		Ack:   1,
		Flags: gfstp.FlagACK,
		Payload: make(
			[]byte,
			gfstp.GfstpMtuDef,
		),
	}
	b.SetBytes(
		int64(gfstp.GfstpOverhead + gfstp.GfstpMtuDef),
	)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := seg.Encode(
			gfstp.GfstpMtuDef,
		); err != nil {
			b.Fatal(
				err,
			)
		}
	}
}

func BenchmarkSegmentDecode(
	b *testing.B,
) {
	seg := &gfstp.Segment{
		Seq:   1,
		Ack:   1,
		Flags: gfstp.FlagACK,
		Payload: make(
			[]byte,
			gfstp.GfstpMtuDef,
		),
	}
	frame, err := seg.Encode(
		gfstp.GfstpMtuDef,
	)
	if err != nil {
		b.Fatal(
			err,
		)
	}
	b.SetBytes(
		int64(len(frame)),
	)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := gfstp.DecodeSegment(
			frame,
		); err != nil {
			b.Fatal(
				err,
			)
		}
	}
}
