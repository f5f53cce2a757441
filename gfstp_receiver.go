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

	"github.com/pkg/errors"
)

// acceptHandshake waits for a SYN, answers with SYN-ACK and resends it
// until the initiator acknowledges.
func (
	c *Conn,
) acceptHandshake() error {
	c.setState(
		StateListening,
	)
	var syn *Segment
	for syn == nil {
		now := time.Now()
		if c.idle(
			now,
		) {
			return errors.Wrapf(
				ErrInactivityCeiling,
				"no SYN within %v",
				c.cfg.InactivityCeiling,
			)
		}
		seg, addr, err := c.t.recv(
			c.pollDeadline(
				now.Add(
					c.cfg.RecvTimeout,
				),
			),
		)
		if err != nil {
			if IsFatal(
				err,
			) {
				return err
			}
			continue
		}
		if !seg.Is(
			FlagSYN,
		) {
			c.violation(
				seg,
				"SYN",
			)
			continue
		}
		c.mu.Lock()
		c.t.raddr = addr
		c.mu.Unlock()
		syn = seg
	}
	c.heard()
	c.peerSeq = syn.Seq
	log.Infof(
		"%v: SYN from %v",
		c.role,
		c.t.raddr,
	)
	synack := &Segment{
		Seq:       0,
		Ack:       syn.Seq + 1,
		Timestamp: syn.Timestamp,
		Flags:     FlagSYN | FlagACK,
	}
	if err := c.t.send(
		synack,
	); err != nil {
		return err
	}
	sentAt := time.Now()
	resent := false
	attempts := 0
	for {
		now := time.Now()
		if c.idle(
			now,
		) {
			return c.idleErr()
		}
		retry := c.rto.IsTimedOut(
			now,
			sentAt,
		)
		var seg *Segment
		if !retry {
			var err error
			seg, _, err = c.t.recv(
				c.pollDeadline(
					sentAt.Add(
						c.rto.Timeout(),
					),
				),
			)
			if err != nil {
				if IsFatal(
					err,
				) {
					return err
				}
				continue
			}
			c.heard()
			switch {
			case seg.Is(
				FlagSYN,
			):
				// The initiator never saw our SYN-ACK.
				synack.Timestamp = seg.Timestamp
				retry = true
			case !seg.Has(
				FlagSYN,
			) && seg.Ack == synack.Seq+1 && (seg.Has(FlagACK) || seg.Has(FlagFIN)):
				if !resent {
					c.rto.Sample(
						time.Since(
							sentAt,
						),
					)
				}
				if seg.Len() > 0 || seg.Has(
					FlagFIN,
				) {
					c.early = seg
				}
				c.setState(
					StateEstablished,
				)
				return nil
			default:
				c.violation(
					seg,
					"handshake ACK ack=1",
				)
			}
		}
		if !retry {
			continue
		}
		if attempts >= c.cfg.MaxRetries {
			return errors.Wrapf(
				ErrRetryBudgetExhausted,
				"no handshake ACK after %d SYN-ACKs",
				attempts+1,
			)
		}
		attempts++
		resent = true
		log.Noticef(
			"%v: resending SYN-ACK (%d/%d)",
			c.role,
			attempts,
			c.cfg.MaxRetries,
		)
		if err := c.resend(
			synack,
		); err != nil {
			return err
		}
		sentAt = time.Now()
	}
}

// sendAck emits a cumulative acknowledgment for the next expected byte.
func (
	c *Conn,
) sendAck(
	ts int64,
) error {
	return c.t.send(
		&Segment{
			Seq:       c.peerAckSeq(),
			Ack:       c.rcv.NextExpectedByte(),
			Timestamp: ts,
			Flags:     FlagACK,
		},
	)
}

// peerAckSeq is the responder's own sequence number after its SYN.
func (
	c *Conn,
) peerAckSeq() uint32 {
	return GfstpFirstByte
}

// recvData receives, reorders and delivers segments until the
// initiator's FIN becomes contiguous.
func (
	c *Conn,
) recvData() error {
	buf := newRecvBuffer(
		c.cfg.Window,
	)
	if c.early != nil {
		seg := c.early
		c.early = nil
		done, err := c.accept(
			seg,
			buf,
		)
		if err != nil || done {
			return err
		}
	}
	for {
		now := time.Now()
		if c.idle(
			now,
		) {
			return c.idleErr()
		}
		seg, _, err := c.t.recv(
			c.pollDeadline(
				now.Add(
					c.cfg.RecvTimeout,
				),
			),
		)
		if err != nil {
			if IsFatal(
				err,
			) {
				return err
			}
			continue
		}
		c.heard()
		done, err := c.accept(
			seg,
			buf,
		)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// accept files one segment into the reorder buffer and drains whatever
// became contiguous. It reports true once the FIN is reached.
func (
	c *Conn,
) accept(
	seg *Segment,
	buf *recvBuffer,
) (
	bool,
	error,
) {
	next := c.rcv.NextExpectedByte()
	switch {
	case seg.Is(
		FlagACK,
	) && seg.Len() == 0 && seg.Seq == GfstpFirstByte && seg.Ack == c.peerAckSeq():
		// Lingering copy of the handshake ACK.
		return false, nil
	case seg.Has(
		FlagSYN,
	):
		c.violation(
			seg,
			"data or FIN",
		)
		return false, nil
	case seg.Is(
		FlagFIN,
	) && seg.Len() == 0:
		if seg.Seq < next {
			c.violation(
				seg,
				"FIN at the next expected byte",
			)
			return false, nil
		}
	case seg.Len() == 0:
		c.violation(
			seg,
			"data",
		)
		return false, nil
	case c.rcv.IsAlreadyReceived(
		seg.Seq,
	):
		incr(
			&c.snsi.DupSegments,
		)
		return false, c.sendAck(
			seg.Timestamp,
		)
	}
	verdict, evicted := buf.insert(
		seg,
	)
	switch verdict {
	case bufferDuplicate:
		incr(
			&c.snsi.DupSegments,
		)
		return false, c.sendAck(
			seg.Timestamp,
		)
	case bufferEvicted:
		incr(
			&c.snsi.OutOfOrderDrops,
		)
		log.Infof(
			"%v: reorder buffer full, evicted seq=%d for seq=%d",
			c.role,
			evicted.Seq,
			seg.Seq,
		)
	case bufferDropped:
		incr(
			&c.snsi.OutOfOrderDrops,
		)
		log.Infof(
			"%v: reorder buffer full, dropped seq=%d",
			c.role,
			seg.Seq,
		)
		return false, nil
	}
	if seg.Seq != next {
		// Out of order: repeat the current boundary.
		return false, c.sendAck(
			seg.Timestamp,
		)
	}
	return c.drain(
		buf,
	)
}

// drain delivers the buffer head while it is contiguous, acknowledging
// every delivered segment.
func (
	c *Conn,
) drain(
	buf *recvBuffer,
) (
	bool,
	error,
) {
	for head := buf.head(); head != nil; head = buf.head() {
		next := c.rcv.NextExpectedByte()
		if head.Seq < next {
			buf.pop()
			continue
		}
		if head.Seq != next {
			return false, nil
		}
		if head.Is(
			FlagFIN,
		) && head.Len() == 0 {
			buf.pop()
			c.finSeq = head.Seq
			c.finTs = head.Timestamp
			log.Infof(
				"%v: FIN at %d, %d bytes delivered",
				c.role,
				head.Seq,
				head.Seq-GfstpFirstByte,
			)
			return true, nil
		}
		if _, err := c.rcv.Deliver(
			head.Seq,
			head.Payload,
		); err != nil {
			return false, err
		}
		buf.pop()
		add(
			&c.snsi.BytesReceived,
			head.Len(),
		)
		if err := c.sendAck(
			head.Timestamp,
		); err != nil {
			return false, err
		}
	}
	return false, nil
}

// recvClose answers the FIN with FIN-ACK under the fixed close timeout
// until the final ACK arrives.
func (
	c *Conn,
) recvClose() error {
	c.setState(
		StateClosing,
	)
	c.rto.Force(
		c.cfg.CloseTimeout,
	)
	defer c.rto.Unforce()
	finack := &Segment{
		Seq:       c.peerAckSeq(),
		Ack:       c.finSeq + 1,
		Timestamp: c.finTs,
		Flags:     FlagFIN | FlagACK,
	}
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		var err error
		if attempt == 0 {
			err = c.t.send(
				finack,
			)
		} else {
			err = c.resend(
				finack,
			)
		}
		if err != nil {
			return err
		}
		// Every byte is delivered; only the retry budget bounds this wait.
		deadline := time.Now().Add(
			c.rto.Timeout(),
		)
	wait:
		for {
			seg, _, err := c.t.recv(
				deadline,
			)
			if err != nil {
				if IsFatal(
					err,
				) {
					return err
				}
				if IsTimeout(
					err,
				) {
					break
				}
				continue
			}
			c.heard()
			switch {
			case seg.Is(
				FlagACK,
			) && seg.Seq == c.finSeq+1 && seg.Ack == finack.Seq+1:
				return nil
			case seg.Is(
				FlagFIN,
			):
				// FIN-ACK lost; answer the repeated FIN right away.
				finack.Timestamp = seg.Timestamp
				break wait
			case seg.Len() > 0:
				incr(
					&c.snsi.DupSegments,
				)
			default:
				c.violation(
					seg,
					"final ACK",
				)
			}
		}
	}
	log.Warningf(
		"%v: no final ACK after %d FIN-ACKs, closing anyway",
		c.role,
		c.cfg.MaxRetries,
	)
	return nil
}
