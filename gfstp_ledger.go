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
	"io"

	"github.com/google/btree"
)

const btreeDegree = 16

// SendLedger tracks what the sender pulled from its Source and which
// cumulative boundaries the peer has acknowledged.
type SendLedger struct {
	src      Source
	mss      int
	pending  []byte
	eof      bool
	nextSeq  uint32
	lastAck  uint32
	acked    *btree.BTreeG[uint32]
	dupCount map[uint32]int
}

// NewSendLedger returns a ledger whose first chunk starts at GfstpFirstByte.
func NewSendLedger(
	src Source,
	mss int,
) *SendLedger {
	l := &SendLedger{
		src:     src,
		mss:     mss,
		nextSeq: GfstpFirstByte,
		lastAck: GfstpFirstByte,
		acked: btree.NewOrderedG[uint32](
			btreeDegree,
		),
		dupCount: make(
			map[uint32]int,
		),
	}
	// The handshake already acknowledged everything before the first byte.
	l.acked.ReplaceOrInsert(
		GfstpFirstByte,
	)
	return l
}

// NextChunk pulls at most mss bytes. It returns ok == false at the end
// of data; any other source error is an ErrIoFailure.
func (
	l *SendLedger,
) NextChunk() (
	chunk []byte,
	seq uint32,
	ok bool,
	err error,
) {
	for len(l.pending) == 0 {
		if l.eof {
			return nil, l.nextSeq, false, nil
		}
		b, rerr := l.src.NextChunk()
		if rerr == io.EOF {
			l.eof = true
			continue
		}
		if rerr != nil {
			return nil, l.nextSeq, false, ioFailure(
				"source",
				rerr,
			)
		}
		l.pending = b
	}
	n := len(
		l.pending,
	)
	if n > l.mss {
		n = l.mss
	}
	chunk = l.pending[:n:n]
	l.pending = l.pending[n:]
	seq = l.nextSeq
	l.nextSeq += uint32(
		n,
	)
	return chunk, seq, true, nil
}

// NextSeq returns the sequence number the next chunk will carry, which
// after the end of data is the FIN sequence number.
func (
	l *SendLedger,
) NextSeq() uint32 {
	return l.nextSeq
}

// RecordAck adds a boundary to the acknowledged set and reports whether
// it was new.
func (
	l *SendLedger,
) RecordAck(
	ack uint32,
) bool {
	if _, found := l.acked.ReplaceOrInsert(
		ack,
	); found {
		return false
	}
	if ack > l.lastAck {
		l.lastAck = ack
	}
	return true
}

// IsAlreadyAcked reports whether ack was recorded before.
func (
	l *SendLedger,
) IsAlreadyAcked(
	ack uint32,
) bool {
	return l.acked.Has(
		ack,
	)
}

// LastAck returns the highest acknowledged boundary.
func (
	l *SendLedger,
) LastAck() uint32 {
	return l.lastAck
}

// DupAck counts one more duplicate for ack and returns the running total.
func (
	l *SendLedger,
) DupAck(
	ack uint32,
) int {
	l.dupCount[ack]++
	return l.dupCount[ack]
}

// ResetDup clears the duplicate counter of ack.
func (
	l *SendLedger,
) ResetDup(
	ack uint32,
) {
	delete(
		l.dupCount,
		ack,
	)
}

// RecvLedger tracks the next contiguous byte and the segments already
// handed to the Sink.
type RecvLedger struct {
	dst       Sink
	next      uint32
	delivered *btree.BTreeG[uint32]
	bytes     uint64
}

// NewRecvLedger returns a ledger expecting GfstpFirstByte.
func NewRecvLedger(
	dst Sink,
) *RecvLedger {
	return &RecvLedger{
		dst:  dst,
		next: GfstpFirstByte,
		delivered: btree.NewOrderedG[uint32](
			btreeDegree,
		),
	}
}

// NextExpectedByte returns the next contiguous sequence number required.
func (
	l *RecvLedger,
) NextExpectedByte() uint32 {
	return l.next
}

// IsAlreadyReceived reports whether a segment starting at seq was
// delivered already.
func (
	l *RecvLedger,
) IsAlreadyReceived(
	seq uint32,
) bool {
	return seq < l.next || l.delivered.Has(
		seq,
	)
}

// Deliver hands payload to the Sink if seq is the next expected byte and
// advances the boundary. Out-of-order data is refused with false.
func (
	l *RecvLedger,
) Deliver(
	seq uint32,
	payload []byte,
) (
	bool,
	error,
) {
	if seq != l.next {
		return false, nil
	}
	if len(
		payload,
	) == 0 {
		return true, nil
	}
	if err := l.dst.Append(
		uint64(seq-GfstpFirstByte),
		payload,
	); err != nil {
		return false, ioFailure(
			"sink",
			err,
		)
	}
	l.delivered.ReplaceOrInsert(
		seq,
	)
	l.next += uint32(
		len(payload),
	)
	l.bytes += uint64(
		len(payload),
	)
	return true, nil
}

// Delivered returns the number of segments and bytes handed to the Sink.
func (
	l *RecvLedger,
) Delivered() (
	int,
	uint64,
) {
	return l.delivered.Len(), l.bytes
}
