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
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Segment flag bits, packed into the low three bits of the length word
const (
	FlagACK uint8 = 1 << iota
	FlagFIN
	FlagSYN
)

const (
	flagMask    = 0x7
	lengthShift = 3
	csumOffset  = 22
)

// Segment is the unit carried in one datagram
type Segment struct {
	Seq       uint32 // Byte offset of the first payload byte
	Ack       uint32 // Next byte the sender of this segment expects
	Timestamp int64  // Send time, or the echoed send time on an ACK
	Flags     uint8
	Payload   []byte
}

// Len returns the payload length.
func (
	seg *Segment,
) Len() int {
	return len(
		seg.Payload,
	)
}

// End returns the sequence number following the payload.
func (
	seg *Segment,
) End() uint32 {
	return seg.Seq + uint32(
		len(
			seg.Payload,
		),
	)
}

// Has reports whether every bit in f is set.
func (
	seg *Segment,
) Has(
	f uint8,
) bool {
	return seg.Flags&f == f
}

// Is reports whether the flags are exactly f.
func (
	seg *Segment,
) Is(
	f uint8,
) bool {
	return seg.Flags&flagMask == f
}

// Encode serializes the segment, checksum included. It fails with
// ErrOversizedPayload when the payload is longer than mss.
func (
	seg *Segment,
) Encode(
	mss int,
) (
	[]byte,
	error,
) {
	n := len(
		seg.Payload,
	)
	if n > mss || n > GfstpMtuLimit-GfstpOverhead {
		return nil, errors.Wrapf(
			ErrOversizedPayload,
			"%d > %d",
			n,
			mss,
		)
	}
	buf := make(
		[]byte,
		GfstpOverhead+n,
	)
	seg.encodeTo(
		buf,
	)
	return buf, nil
}

// encodeTo writes the frame into buf, which must hold GfstpOverhead+Len bytes.
func (
	seg *Segment,
) encodeTo(
	buf []byte,
) {
	p := gfstpEncode32u(
		buf,
		seg.Seq,
	)
	p = gfstpEncode32u(
		p,
		seg.Ack,
	)
	p = gfstpEncode64(
		p,
		seg.Timestamp,
	)
	p = gfstpEncode32u(
		p,
		uint32(len(seg.Payload))<<lengthShift|uint32(seg.Flags&flagMask),
	)
	p = gfstpEncode16u(
		p,
		0,
	)
	p = gfstpEncode16u(
		p,
		0,
	)
	copy(
		p,
		seg.Payload,
	)
	gfstpEncode16u(
		buf[csumOffset:],
		Checksum(
			buf,
		),
	)
}

// DecodeSegment parses and validates one frame. A checksum mismatch,
// a short frame or a length word that disagrees with the frame size
// yields ErrCorruptSegment and a nil segment.
func DecodeSegment(
	frame []byte,
) (
	*Segment,
	error,
) {
	if len(
		frame,
	) < GfstpOverhead {
		return nil, errors.Wrapf(
			ErrCorruptSegment,
			"short frame: %d bytes",
			len(frame),
		)
	}
	if !Validate(
		frame,
	) {
		return nil, ErrCorruptSegment
	}
	var (
		seq, ack, word uint32
		ts             int64
	)
	p := gfstpDecode32u(
		frame,
		&seq,
	)
	p = gfstpDecode32u(
		p,
		&ack,
	)
	p = gfstpDecode64(
		p,
		&ts,
	)
	gfstpDecode32u(
		p,
		&word,
	)
	n := int(
		word >> lengthShift,
	)
	if n != len(frame)-GfstpOverhead {
		return nil, errors.Wrapf(
			ErrCorruptSegment,
			"length word %d, frame carries %d",
			n,
			len(frame)-GfstpOverhead,
		)
	}
	seg := &Segment{
		Seq:       seq,
		Ack:       ack,
		Timestamp: ts,
		Flags:     uint8(word & flagMask),
	}
	if n > 0 {
		seg.Payload = make(
			[]byte,
			n,
		)
		copy(
			seg.Payload,
			frame[GfstpOverhead:],
		)
	}
	return seg, nil
}

// Checksum returns the complemented one's-complement sum of b taken as
// big-endian 16-bit words, an odd trailing byte padded with zero.
func Checksum(
	b []byte,
) uint16 {
	return ^onesSum(
		b,
	)
}

// Validate reports whether the frame, transmitted checksum included,
// sums to all ones.
func Validate(
	frame []byte,
) bool {
	return ^onesSum(
		frame,
	) == 0
}

func onesSum(
	b []byte,
) uint16 {
	var sum uint32
	n := len(
		b,
	)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if n%2 != 0 {
		sum += uint32(b[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return uint16(
		sum,
	)
}

// Trace renders the per-segment diagnostic line.
func (
	seg *Segment,
) Trace(
	dir string,
	elapsed time.Duration,
) string {
	var fl strings.Builder
	for _, f := range []struct {
		bit uint8
		c   string
	}{
		{FlagSYN, "S"},
		{FlagACK, "A"},
		{FlagFIN, "F"},
	} {
		if seg.Has(
			f.bit,
		) {
			fl.WriteString(
				f.c,
			)
		} else {
			fl.WriteString(
				"-",
			)
		}
		fl.WriteString(
			" ",
		)
	}
	if seg.Len() > 0 {
		fl.WriteString(
			"D",
		)
	} else {
		fl.WriteString(
			"-",
		)
	}
	return fmt.Sprintf(
		"%s %.3f %s %d %d %d",
		dir,
		elapsed.Seconds(),
		fl.String(),
		seg.Seq,
		seg.Len(),
		seg.Ack,
	)
}

func (
	seg *Segment,
) String() string {
	return seg.Trace(
		"seg",
		0,
	)
}
