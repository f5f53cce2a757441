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
	"time"

	"github.com/google/btree"
)

// inflight is one unacknowledged data segment of the send window
type inflight struct {
	seg     *Segment
	sentAt  time.Time
	retries int
	resent  bool
}

// sendWindow holds the in-flight segments of a round in send order,
// which is also sequence order.
type sendWindow struct {
	items []*inflight
}

func (
	w *sendWindow,
) push(
	seg *Segment,
	now time.Time,
) *inflight {
	it := &inflight{
		seg:    seg,
		sentAt: now,
	}
	w.items = append(
		w.items,
		it,
	)
	return it
}

func (
	w *sendWindow,
) len() int {
	return len(
		w.items,
	)
}

// covers reports whether some in-flight segment ends exactly at ack.
func (
	w *sendWindow,
) covers(
	ack uint32,
) *inflight {
	for _, it := range w.items {
		if it.seg.End() == ack {
			return it
		}
	}
	return nil
}

// ackThrough removes every entry that ends at or before ack and returns
// the removed entries.
func (
	w *sendWindow,
) ackThrough(
	ack uint32,
) []*inflight {
	var gone []*inflight
	kept := w.items[:0]
	for _, it := range w.items {
		if it.seg.End() <= ack {
			gone = append(
				gone,
				it,
			)
		} else {
			kept = append(
				kept,
				it,
			)
		}
	}
	for i := len(kept); i < len(w.items); i++ {
		w.items[i] = nil
	}
	w.items = kept
	return gone
}

// nextDeadline returns the earliest instant at which some entry times out.
func (
	w *sendWindow,
) nextDeadline(
	rto time.Duration,
) time.Time {
	var d time.Time
	for i, it := range w.items {
		t := it.sentAt.Add(
			rto,
		)
		if i == 0 || t.Before(
			d,
		) {
			d = t
		}
	}
	return d
}

func (
	w *sendWindow,
) reset() {
	w.items = w.items[:0]
}

// bufferVerdict reports what recvBuffer.insert did with a segment
type bufferVerdict int

const (
	bufferInserted bufferVerdict = iota
	bufferDuplicate
	bufferEvicted
	bufferDropped
)

func (
	v bufferVerdict,
) String() string {
	switch v {
	case bufferInserted:
		return "inserted"
	case bufferDuplicate:
		return "duplicate"
	case bufferEvicted:
		return "evicted-max"
	case bufferDropped:
		return "dropped"
	}
	return "unknown"
}

// recvBuffer is the bounded reordering buffer of the receiver. When it
// is full, a newcomer below the current maximum evicts that maximum;
// otherwise the newcomer is dropped.
type recvBuffer struct {
	tree *btree.BTreeG[*Segment]
	cap  int
}

func newRecvBuffer(
	capacity int,
) *recvBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &recvBuffer{
		tree: btree.NewG(
			btreeDegree,
			func(
				a,
				b *Segment,
			) bool {
				return a.Seq < b.Seq
			},
		),
		cap: capacity,
	}
}

func (
	b *recvBuffer,
) len() int {
	return b.tree.Len()
}

// insert places seg in sequence order. The evicted segment, if any, is
// returned alongside the verdict.
func (
	b *recvBuffer,
) insert(
	seg *Segment,
) (
	bufferVerdict,
	*Segment,
) {
	if b.tree.Has(
		seg,
	) {
		return bufferDuplicate, nil
	}
	if b.tree.Len() < b.cap {
		b.tree.ReplaceOrInsert(
			seg,
		)
		return bufferInserted, nil
	}
	max, _ := b.tree.Max()
	if seg.Seq < max.Seq {
		b.tree.DeleteMax()
		b.tree.ReplaceOrInsert(
			seg,
		)
		return bufferEvicted, max
	}
	return bufferDropped, nil
}

func (
	b *recvBuffer,
) head() *Segment {
	seg, ok := b.tree.Min()
	if !ok {
		return nil
	}
	return seg
}

func (
	b *recvBuffer,
) pop() {
	b.tree.DeleteMin()
}

// seqs lists the buffered sequence numbers in order.
func (
	b *recvBuffer,
) seqs() []uint32 {
	out := make(
		[]uint32,
		0,
		b.tree.Len(),
	)
	b.tree.Ascend(
		func(
			seg *Segment,
		) bool {
			out = append(
				out,
				seg.Seq,
			)
			return true
		},
	)
	return out
}
