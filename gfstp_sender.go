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

// dialHandshake sends SYN until a SYN-ACK acknowledging it arrives.
func (
	c *Conn,
) dialHandshake() error {
	c.setState(
		StateHandshakeSent,
	)
	syn := &Segment{
		Seq:   0,
		Flags: FlagSYN,
	}
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		syn.Timestamp = GfstpCurrentNs()
		var err error
		if attempt == 0 {
			err = c.t.send(
				syn,
			)
		} else {
			log.Noticef(
				"%v: no SYN-ACK within %v, resending SYN (%d/%d)",
				c.role,
				c.rto.Timeout(),
				attempt,
				c.cfg.MaxRetries,
			)
			err = c.resend(
				syn,
			)
		}
		if err != nil {
			return err
		}
		deadline := time.Now().Add(
			c.rto.Timeout(),
		)
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
			if !seg.Is(
				FlagSYN|FlagACK,
			) || seg.Ack != syn.Seq+1 {
				c.violation(
					seg,
					"SYN-ACK ack=1",
				)
				continue
			}
			// The SYN-ACK echoes the timestamp of the SYN it answers, so
			// the sample stays exact after a resent SYN.
			c.echoSample(
				seg.Timestamp,
			)
			c.peerSeq = seg.Seq
			if err := c.sendRepeated(
				c.handshakeAck(
					seg.Timestamp,
				),
			); err != nil {
				return err
			}
			c.setState(
				StateEstablished,
			)
			return nil
		}
	}
	return errors.Wrapf(
		ErrRetryBudgetExhausted,
		"connection refused by %v: no SYN-ACK after %d attempts",
		c.t.raddr,
		c.cfg.MaxRetries,
	)
}

func (
	c *Conn,
) handshakeAck(
	ts int64,
) *Segment {
	return &Segment{
		Seq:       GfstpFirstByte,
		Ack:       c.peerSeq + 1,
		Timestamp: ts,
		Flags:     FlagACK,
	}
}

// sendData runs sender rounds until the Source is exhausted.
func (
	c *Conn,
) sendData() error {
	c.window = 1
	for round := 0; ; round++ {
		c.win.reset()
		c.roundStart = GfstpCurrentNs()
		final := false
		for c.win.len() < c.window {
			chunk, seq, ok, err := c.snd.NextChunk()
			if err != nil {
				return err
			}
			if !ok {
				final = true
				break
			}
			seg := &Segment{
				Seq:       seq,
				Ack:       c.peerSeq + 1,
				Timestamp: GfstpCurrentNs(),
				Flags:     FlagACK,
				Payload:   chunk,
			}
			c.win.push(
				seg,
				time.Now(),
			)
			if err := c.t.send(
				seg,
			); err != nil {
				return err
			}
		}
		n := c.win.len()
		if n > 0 {
			resent, fast, err := c.awaitRound()
			if err != nil {
				return err
			}
			c.endRound(
				round,
				n,
				resent,
				fast,
			)
		}
		if final {
			c.finSeq = c.snd.NextSeq()
			log.Infof(
				"%v: final round done, %d bytes acknowledged",
				c.role,
				c.finSeq-GfstpFirstByte,
			)
			return nil
		}
	}
}

// endRound records the round and grows or shrinks the window.
func (
	c *Conn,
) endRound(
	index,
	segments int,
	resent,
	fast bool,
) {
	c.mu.Lock()
	c.rounds = append(
		c.rounds,
		Round{
			Index:    index,
			Window:   c.window,
			Segments: segments,
			Resent:   resent,
			Fast:     fast,
		},
	)
	c.mu.Unlock()
	old := c.window
	if resent {
		c.window /= 2
		if c.window < 1 {
			c.window = 1
		}
	} else {
		c.window *= 2
		if c.window > c.cfg.Window {
			c.window = c.cfg.Window
		}
	}
	if old != c.window {
		log.Debugf(
			"%v: window %d -> %d",
			c.role,
			old,
			c.window,
		)
	}
}

// awaitRound waits until every in-flight segment is acknowledged,
// resending on per-segment timeouts and on GfstpAckFast duplicate ACKs.
func (
	c *Conn,
) awaitRound() (
	resent bool,
	fast bool,
	err error,
) {
	for c.win.len() > 0 {
		now := time.Now()
		for _, it := range c.win.items {
			if !c.rto.IsTimedOut(
				now,
				it.sentAt,
			) {
				continue
			}
			log.Noticef(
				"%v: timeout after %v, resending seq=%d",
				c.role,
				c.rto.Timeout(),
				it.seg.Seq,
			)
			if err := c.retransmit(
				it,
				now,
			); err != nil {
				return resent, fast, err
			}
			resent = true
		}
		if c.idle(
			now,
		) {
			return resent, fast, c.idleErr()
		}
		seg, _, err := c.t.recv(
			c.pollDeadline(
				c.win.nextDeadline(
					c.rto.Timeout(),
				),
			),
		)
		if err != nil {
			if IsFatal(
				err,
			) {
				return resent, fast, err
			}
			continue
		}
		c.heard()
		switch {
		case seg.Is(
			FlagSYN | FlagACK,
		):
			// Our handshake ACKs were all lost.
			if err := c.t.send(
				c.handshakeAck(
					seg.Timestamp,
				),
			); err != nil {
				return resent, fast, err
			}
		case seg.Is(
			FlagACK,
		) && seg.Len() == 0:
			f, err := c.onAck(
				seg,
			)
			if err != nil {
				return resent, fast, err
			}
			if f {
				resent = true
				fast = true
			}
		default:
			c.violation(
				seg,
				"data ACK",
			)
		}
	}
	return resent, fast, nil
}

// onAck handles one acknowledgment and reports whether it caused a
// fast resend of the window.
func (
	c *Conn,
) onAck(
	seg *Segment,
) (
	bool,
	error,
) {
	ack := seg.Ack
	if c.snd.IsAlreadyAcked(
		ack,
	) {
		incr(
			&c.snsi.DupAcks,
		)
		if seg.Timestamp < c.roundStart {
			// Echoes data from an earlier round.
			return false, nil
		}
		if n := c.snd.DupAck(
			ack,
		); n < GfstpAckFast {
			return false, nil
		}
		c.snd.ResetDup(
			ack,
		)
		incr(
			&c.snsi.FastRetransmits,
		)
		log.Noticef(
			"%v: %d duplicate ACKs for %d, resending %d outstanding segments",
			c.role,
			GfstpAckFast,
			ack,
			c.win.len(),
		)
		now := time.Now()
		for _, it := range c.win.items {
			if err := c.retransmit(
				it,
				now,
			); err != nil {
				return true, err
			}
		}
		return true, nil
	}
	if ack < c.snd.LastAck() {
		// Reordered ACK overtaken by a later cumulative one.
		c.snd.RecordAck(
			ack,
		)
		return false, nil
	}
	if ack > c.snd.NextSeq() {
		c.violation(
			seg,
			"ack within sent data",
		)
		return false, nil
	}
	exact := c.win.covers(
		ack,
	)
	c.snd.RecordAck(
		ack,
	)
	gone := c.win.ackThrough(
		ack,
	)
	if exact != nil && !exact.resent {
		c.echoSample(
			seg.Timestamp,
		)
	}
	log.Debugf(
		"%v: ack %d releases %d segments, rto %v",
		c.role,
		ack,
		len(gone),
		c.rto.Timeout(),
	)
	return false, nil
}

// retransmit resends one in-flight segment and charges its retry budget.
func (
	c *Conn,
) retransmit(
	it *inflight,
	now time.Time,
) error {
	if it.retries >= c.cfg.MaxRetries {
		return errors.Wrapf(
			ErrRetryBudgetExhausted,
			"segment seq=%d resent %d times",
			it.seg.Seq,
			it.retries,
		)
	}
	it.retries++
	it.resent = true
	it.sentAt = now
	it.seg.Timestamp = GfstpCurrentNs()
	return c.resend(
		it.seg,
	)
}

// sendClose sends FIN until the peer's FIN-ACK arrives, then sends the
// final ACK GfstpAckRepeat times.
func (
	c *Conn,
) sendClose() error {
	c.setState(
		StateClosing,
	)
	fin := &Segment{
		Seq:   c.finSeq,
		Ack:   c.peerSeq + 1,
		Flags: FlagFIN,
	}
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		fin.Timestamp = GfstpCurrentNs()
		var err error
		if attempt == 0 {
			err = c.t.send(
				fin,
			)
		} else {
			err = c.resend(
				fin,
			)
		}
		if err != nil {
			return err
		}
		deadline := c.pollDeadline(
			time.Now().Add(
				c.rto.Timeout(),
			),
		)
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
			if seg.Is(
				FlagFIN|FlagACK,
			) && seg.Ack == fin.Seq+1 {
				if attempt == 0 {
					c.echoSample(
						seg.Timestamp,
					)
				}
				return c.sendRepeated(
					&Segment{
						Seq:       fin.Seq + 1,
						Ack:       seg.Seq + 1,
						Timestamp: seg.Timestamp,
						Flags:     FlagACK,
					},
				)
			}
			if seg.Is(
				FlagACK,
			) {
				// Late data ACK.
				continue
			}
			c.violation(
				seg,
				"FIN-ACK",
			)
		}
		if c.idle(
			time.Now(),
		) {
			return c.idleErr()
		}
	}
	return errors.Wrapf(
		ErrRetryBudgetExhausted,
		"no FIN-ACK after %d attempts",
		c.cfg.MaxRetries,
	)
}
