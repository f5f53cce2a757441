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
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
)

// DropPolicy decides whether the n-th outgoing datagram (counting from
// zero), decoded as seg, is lost.
type DropPolicy func(
	seg *Segment,
	n uint64,
) bool

// LossyConn is a net.PacketConn that loses outgoing datagrams according
// to a DropPolicy. Reads pass straight through.
type LossyConn struct {
	net.PacketConn
	policy  DropPolicy
	sent    uint64
	dropped uint64
}

// NewLossyConn wraps conn.
func NewLossyConn(
	conn net.PacketConn,
	policy DropPolicy,
) *LossyConn {
	return &LossyConn{
		PacketConn: conn,
		policy:     policy,
	}
}

// WriteTo implements net.PacketConn. A dropped datagram reports success.
func (
	c *LossyConn,
) WriteTo(
	b []byte,
	addr net.Addr,
) (
	int,
	error,
) {
	n := atomic.AddUint64(
		&c.sent,
		1,
	) - 1
	if c.policy != nil {
		if seg, err := DecodeSegment(
			b,
		); err == nil && c.policy(
			seg,
			n,
		) {
			atomic.AddUint64(
				&c.dropped,
				1,
			)
			log.Infof(
				"lossy: dropped %v",
				seg,
			)
			return len(b), nil
		}
	}
	return c.PacketConn.WriteTo(
		b,
		addr,
	)
}

// Unwrap returns the underlying connection.
func (
	c *LossyConn,
) Unwrap() net.PacketConn {
	return c.PacketConn
}

// Dropped returns how many datagrams were lost on purpose.
func (
	c *LossyConn,
) Dropped() uint64 {
	return atomic.LoadUint64(
		&c.dropped,
	)
}

// RandomDrop loses each datagram with probability rate.
func RandomDrop(
	rate float64,
	seed int64,
) DropPolicy {
	var mu sync.Mutex
	r := rand.New(
		rand.NewSource(
			seed,
		),
	)
	return func(
		_ *Segment,
		_ uint64,
	) bool {
		mu.Lock()
		defer mu.Unlock()
		return r.Float64() < rate
	}
}

// DropFirst loses the first count datagrams for which match is true.
func DropFirst(
	count int,
	match func(*Segment) bool,
) DropPolicy {
	var (
		mu   sync.Mutex
		left = count
	)
	return func(
		seg *Segment,
		_ uint64,
	) bool {
		mu.Lock()
		defer mu.Unlock()
		if left > 0 && match(
			seg,
		) {
			left--
			return true
		}
		return false
	}
}

// AnyOf combines policies; a datagram is lost if any of them says so.
func AnyOf(
	policies ...DropPolicy,
) DropPolicy {
	return func(
		seg *Segment,
		n uint64,
	) bool {
		for _, p := range policies {
			if p(
				seg,
				n,
			) {
				return true
			}
		}
		return false
	}
}
