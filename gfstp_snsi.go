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
	"sync/atomic"
)

// Snsi == Simple Network Statistics Indicators
type Snsi struct {
	SegmentsSent       uint64 // Segments written to the socket
	SegmentsReceived   uint64 // Valid segments read from the socket
	BytesSent          uint64 // Payload bytes handed to the socket
	BytesReceived      uint64 // Payload bytes delivered to the sink
	Retransmissions    uint64 // Segments sent again after a timeout or fast resend
	FastRetransmits    uint64 // Full-window resends triggered by duplicate ACKs
	DupAcks            uint64 // Acknowledgments for an already acknowledged boundary
	DupSegments        uint64 // Data segments received at or before the next expected byte
	OutOfOrderDrops    uint64 // Segments dropped or evicted from a full reorder buffer
	ChecksumFailures   uint64 // Frames rejected by checksum validation
	ProtocolViolations uint64 // Segments that did not fit the current state
	InputErrors        uint64 // Datagrams from a foreign peer or read errors
}

func newSnsi() *Snsi {
	return new(
		Snsi,
	)
}

// Header returns all field names
func (
	s *Snsi,
) Header() []string {
	return []string{
		"SegmentsSent",
		"SegmentsReceived",
		"BytesSent",
		"BytesReceived",
		"Retransmissions",
		"FastRetransmits",
		"DupAcks",
		"DupSegments",
		"OutOfOrderDrops",
		"ChecksumFailures",
		"ProtocolViolations",
		"InputErrors",
	}
}

// ToSlice returns current Snsi info as a slice
func (
	s *Snsi,
) ToSlice() []string {
	snsi := s.Copy()
	return []string{
		fmt.Sprint(
			snsi.SegmentsSent,
		),
		fmt.Sprint(
			snsi.SegmentsReceived,
		),
		fmt.Sprint(
			snsi.BytesSent,
		),
		fmt.Sprint(
			snsi.BytesReceived,
		),
		fmt.Sprint(
			snsi.Retransmissions,
		),
		fmt.Sprint(
			snsi.FastRetransmits,
		),
		fmt.Sprint(
			snsi.DupAcks,
		),
		fmt.Sprint(
			snsi.DupSegments,
		),
		fmt.Sprint(
			snsi.OutOfOrderDrops,
		),
		fmt.Sprint(
			snsi.ChecksumFailures,
		),
		fmt.Sprint(
			snsi.ProtocolViolations,
		),
		fmt.Sprint(
			snsi.InputErrors,
		),
	}
}

// Copy makes a copy of current Snsi snapshot
func (
	s *Snsi,
) Copy() *Snsi {
	d := newSnsi()
	d.SegmentsSent = atomic.LoadUint64(
		&s.SegmentsSent,
	)
	d.SegmentsReceived = atomic.LoadUint64(
		&s.SegmentsReceived,
	)
	d.BytesSent = atomic.LoadUint64(
		&s.BytesSent,
	)
	d.BytesReceived = atomic.LoadUint64(
		&s.BytesReceived,
	)
	d.Retransmissions = atomic.LoadUint64(
		&s.Retransmissions,
	)
	d.FastRetransmits = atomic.LoadUint64(
		&s.FastRetransmits,
	)
	d.DupAcks = atomic.LoadUint64(
		&s.DupAcks,
	)
	d.DupSegments = atomic.LoadUint64(
		&s.DupSegments,
	)
	d.OutOfOrderDrops = atomic.LoadUint64(
		&s.OutOfOrderDrops,
	)
	d.ChecksumFailures = atomic.LoadUint64(
		&s.ChecksumFailures,
	)
	d.ProtocolViolations = atomic.LoadUint64(
		&s.ProtocolViolations,
	)
	d.InputErrors = atomic.LoadUint64(
		&s.InputErrors,
	)
	return d
}

// Reset sets all Snsi values to zero
func (s *Snsi) Reset() {
	atomic.StoreUint64(
		&s.SegmentsSent,
		0,
	)
	atomic.StoreUint64(
		&s.SegmentsReceived,
		0,
	)
	atomic.StoreUint64(
		&s.BytesSent,
		0,
	)
	atomic.StoreUint64(
		&s.BytesReceived,
		0,
	)
	atomic.StoreUint64(
		&s.Retransmissions,
		0,
	)
	atomic.StoreUint64(
		&s.FastRetransmits,
		0,
	)
	atomic.StoreUint64(
		&s.DupAcks,
		0,
	)
	atomic.StoreUint64(
		&s.DupSegments,
		0,
	)
	atomic.StoreUint64(
		&s.OutOfOrderDrops,
		0,
	)
	atomic.StoreUint64(
		&s.ChecksumFailures,
		0,
	)
	atomic.StoreUint64(
		&s.ProtocolViolations,
		0,
	)
	atomic.StoreUint64(
		&s.InputErrors,
		0,
	)
}

func incr(
	p *uint64,
) {
	atomic.AddUint64(
		p,
		1,
	)
}

func add(
	p *uint64,
	n int,
) {
	atomic.AddUint64(
		p,
		uint64(n),
	)
}
