// Package gfstp - A Reliable Stream Transfer Protocol over UDP
//
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
	"encoding/binary"
	"time"

	logging "github.com/op/go-logging"
	gfstpLegal "go4.org/legal"
)

// Gfstp protocol constants
const (
	GfstpOverhead   = 24    // GfstpOverhead:	Fixed header size
	GfstpMtuLimit   = 9000  // GfstpMtuLimit:	Largest datagram ever read
	GfstpMtuDef     = 1448  // GfstpMtuDef:	Default payload cap
	GfstpWndDef     = 8     // GfstpWndDef:	Default window capacity
	GfstpMaxRetries = 16    // GfstpMaxRetries:	Per-segment resend budget
	GfstpAckFast    = 3     // GfstpAckFast:	Duplicate ACKs before fast resend
	GfstpAckRepeat  = 3     // GfstpAckRepeat:	Copies of an unacknowledged ACK
	GfstpFirstByte  = 1     // GfstpFirstByte:	Sequence number of the first data byte
	GfstpRtoMin     = 100 * time.Millisecond
	GfstpRtoDef     = 5 * time.Second
	GfstpRtoMax     = 45 * time.Second
	GfstpRecvPoll   = 200 * time.Millisecond
	GfstpCloseWait  = 250 * time.Millisecond
	GfstpIdleLimit  = 30 * time.Second
)

var log = logging.MustGetLogger(
	"gfstp",
)

func gfstpEncode16u(
	p []byte,
	w uint16,
) []byte {
	binary.BigEndian.PutUint16(
		p,
		w,
	)
	return p[2:]
}

func gfstpEncode32u(
	p []byte,
	l uint32,
) []byte {
	binary.BigEndian.PutUint32(
		p,
		l,
	)
	return p[4:]
}

func gfstpDecode32u(
	p []byte,
	l *uint32,
) []byte {
	*l = binary.BigEndian.Uint32(
		p,
	)
	return p[4:]
}

func gfstpEncode64(
	p []byte,
	v int64,
) []byte {
	binary.BigEndian.PutUint64(
		p,
		uint64(v),
	)
	return p[8:]
}

func gfstpDecode64(
	p []byte,
	v *int64,
) []byte {
	*v = int64(
		binary.BigEndian.Uint64(
			p,
		),
	)
	return p[8:]
}

func _dmin(
	a,
	b time.Duration,
) time.Duration {
	if a <= b {
		return a
	}
	return b
}

func _dmax(
	a,
	b time.Duration,
) time.Duration {
	if a >= b {
		return a
	}
	return b
}

func _dbound(
	lower,
	middle,
	upper time.Duration,
) time.Duration {
	return _dmin(
		_dmax(
			lower,
			middle,
		),
		upper,
	)
}

func _dabs(
	d time.Duration,
) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

var refTime = time.Now()

// GfstpCurrentNs returns monotonic nanoseconds since package start.
// Segment timestamps carry this value; peers only echo it back.
func GfstpCurrentNs() int64 {
	return int64(
		time.Since(
			refTime,
		),
	)
}

func init() {
	gfstpLegal.RegisterLicense(
		"\nThe MIT License (MIT)\n\nCopyright © 2015 Daniel Fu <daniel820313@gmail.com>.\nCopyright © 2019 Loki 'l0k18' Verloren <stalker.loki@protonmail.ch>.\nCopyright © 2020 Gridfinity, LLC. <admin@gridfinity.com>.\nCopyright © 2020 Jeffrey H. Johnson <jeff@gridfinity.com>.\n\nPermission is hereby granted, free of charge, to any person obtaining a copy\nof this software and associated documentation files (the \"Software\"), to deal\nin the Software without restriction, including, without limitation, the rights\nto use, copy, modify, merge, publish, distribute, sub-license, and/or sell\ncopies of the Software, and to permit persons to whom the Software is\nfurnished to do so, subject to the following conditions:\n\nThe above copyright notice, and this permission notice, shall be\nincluded in all copies, or substantial portions, of the Software.\n\nTHE SOFTWARE IS PROVIDED \"AS IS\", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR\nIMPLIED, INCLUDING, BUT NOT LIMITED TO, THE WARRANTIES OF MERCHANTABILITY,\nFITNESS FOR A PARTICULAR PURPOSE, AND NON-INFRINGEMENT. IN NO EVENT SHALL THE\nAUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES, OR OTHER\nLIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,\nOUT OF, OR IN CONNECTION WITH THE SOFTWARE, OR THE USE OR OTHER DEALINGS IN\nTHE SOFTWARE.\n",
	)
}
