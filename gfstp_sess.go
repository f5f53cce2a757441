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
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// KxmitBuf holds GfstpMtuLimit-sized scratch buffers for encoding
// outgoing frames and for single-datagram reads.
var KxmitBuf sync.Pool

func init() {
	KxmitBuf.New = func() interface{} {
		return make(
			[]byte,
			GfstpMtuLimit,
		)
	}
}

type datagram struct {
	b    []byte
	addr net.Addr
}

// transport owns the packet connection of one Conn. It is used by a
// single goroutine; only close may be called concurrently.
type transport struct {
	conn  net.PacketConn
	rconn net.PacketConn // receive side, LossyConn unwrapped
	raddr net.Addr
	mss   int
	snsi  *Snsi
	start time.Time
	queue []datagram
	batch *batchReader
	trace bool
}

func newTransport(
	conn net.PacketConn,
	raddr net.Addr,
	mss int,
	snsi *Snsi,
) *transport {
	rconn := conn
	if lc, ok := conn.(*LossyConn); ok {
		rconn = lc.Unwrap()
	}
	return &transport{
		conn:  conn,
		rconn: rconn,
		raddr: raddr,
		mss:   mss,
		snsi:  snsi,
		start: time.Now(),
		batch: newBatchReader(
			rconn,
		),
		trace: log.IsEnabledFor(
			logDebug,
		),
	}
}

// send writes one segment to the peer.
func (
	t *transport,
) send(
	seg *Segment,
) error {
	if t.raddr == nil {
		return errors.New(
			errInvalidOperation,
		)
	}
	n := seg.Len()
	if n > t.mss {
		return errors.Wrapf(
			ErrOversizedPayload,
			"%d > %d",
			n,
			t.mss,
		)
	}
	buf := KxmitBuf.Get().([]byte)[:GfstpOverhead+n]
	seg.encodeTo(
		buf,
	)
	_, err := t.conn.WriteTo(
		buf,
		t.raddr,
	)
	KxmitBuf.Put(
		buf[:cap(buf)],
	)
	if err != nil {
		return ioFailure(
			"WriteTo",
			err,
		)
	}
	incr(
		&t.snsi.SegmentsSent,
	)
	add(
		&t.snsi.BytesSent,
		n,
	)
	if t.trace {
		log.Debug(
			seg.Trace(
				"snd",
				time.Since(
					t.start,
				),
			),
		)
	}
	return nil
}

// recv returns the next valid segment from the peer, waiting until
// deadline at most. Timeouts, corrupt frames and foreign datagrams come
// back as errors for the caller to classify; a nil raddr accepts any
// sender and reports it.
func (
	t *transport,
) recv(
	deadline time.Time,
) (
	*Segment,
	net.Addr,
	error,
) {
	for {
		if len(
			t.queue,
		) == 0 {
			if !time.Now().Before(
				deadline,
			) {
				return nil, nil, newErrTimeout()
			}
			if err := t.rconn.SetReadDeadline(
				deadline,
			); err != nil {
				return nil, nil, t.readErr(
					err,
				)
			}
			if err := t.fill(); err != nil {
				return nil, nil, t.readErr(
					err,
				)
			}
			continue
		}
		d := t.queue[0]
		t.queue[0] = datagram{}
		t.queue = t.queue[1:]
		if t.raddr != nil && d.addr.String() != t.raddr.String() {
			incr(
				&t.snsi.InputErrors,
			)
			log.Noticef(
				"%s %v",
				errForeignPeer,
				d.addr,
			)
			continue
		}
		seg, err := DecodeSegment(
			d.b,
		)
		if err != nil {
			incr(
				&t.snsi.ChecksumFailures,
			)
			return nil, d.addr, err
		}
		incr(
			&t.snsi.SegmentsReceived,
		)
		if t.trace {
			log.Debug(
				seg.Trace(
					"rcv",
					time.Since(
						t.start,
					),
				),
			)
		}
		return seg, d.addr, nil
	}
}

func (
	t *transport,
) fill() error {
	if t.batch != nil {
		return t.batch.read(
			t,
		)
	}
	buf := KxmitBuf.Get().([]byte)
	defer KxmitBuf.Put(
		buf,
	)
	n, addr, err := t.rconn.ReadFrom(
		buf,
	)
	if err != nil {
		return err
	}
	t.push(
		buf[:n],
		addr,
	)
	return nil
}

func (
	t *transport,
) push(
	b []byte,
	addr net.Addr,
) {
	c := make(
		[]byte,
		len(b),
	)
	copy(
		c,
		b,
	)
	t.queue = append(
		t.queue,
		datagram{
			b:    c,
			addr: addr,
		},
	)
}

func (
	t *transport,
) readErr(
	err error,
) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return newErrTimeout()
	}
	if errors.Is(
		err,
		net.ErrClosed,
	) {
		return errors.Wrap(
			ErrClosed,
			err.Error(),
		)
	}
	incr(
		&t.snsi.InputErrors,
	)
	return ioFailure(
		"ReadFrom",
		err,
	)
}

func (
	t *transport,
) close() error {
	return t.conn.Close()
}

// setDSCP sets the 6-bit DSCP field of the IP header.
func (
	t *transport,
) setDSCP(
	dscp int,
) error {
	if nc, ok := t.rconn.(net.Conn); ok {
		addr, _ := net.ResolveUDPAddr(
			"udp",
			nc.LocalAddr().String(),
		)
		if addr != nil && addr.IP.To4() != nil {
			return ipv4.NewConn(
				nc,
			).SetTOS(
				dscp << 2,
			)
		}
		return ipv6.NewConn(
			nc,
		).SetTrafficClass(
			dscp,
		)
	}
	return errors.New(
		errInvalidOperation,
	)
}

// listenUDP binds the local port, choosing the address family of the
// peer when one is known.
func listenUDP(
	port int,
	raddr *net.UDPAddr,
) (
	*net.UDPConn,
	error,
) {
	network := "udp4"
	if raddr != nil && raddr.IP.To4() == nil {
		network = "udp6"
	}
	conn, err := net.ListenUDP(
		network,
		&net.UDPAddr{
			Port: port,
		},
	)
	if err != nil {
		return nil, errors.Wrap(
			err,
			"net.ListenUDP",
		)
	}
	return conn, nil
}
