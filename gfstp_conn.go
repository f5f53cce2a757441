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
	"sync/atomic"
	"time"

	logging "github.com/op/go-logging"
	"github.com/pkg/errors"
)

const logDebug = logging.DEBUG

// Role selects which state machine a Conn runs.
type Role int

// Roles
const (
	RoleInitiator Role = iota // Sends data
	RoleResponder             // Receives data
)

func (
	r Role,
) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

// State is the lifecycle state of a Conn.
type State int32

// States
const (
	StateClosed State = iota
	StateHandshakeSent
	StateListening
	StateEstablished
	StateClosing
)

func (
	s State,
) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHandshakeSent:
		return "HANDSHAKE_SENT"
	case StateListening:
		return "LISTENING"
	case StateEstablished:
		return "ESTABLISHED"
	case StateClosing:
		return "CLOSING"
	}
	return "UNKNOWN"
}

// Round describes one sender round.
type Round struct {
	Index    int  // Zero-based round number
	Window   int  // Window size in effect for the round
	Segments int  // Data segments sent in the round
	Resent   bool // Whether any segment was sent more than once
	Fast     bool // Whether a duplicate-ACK resend happened
}

// Conn is one end of a transfer. A Conn is driven by a single goroutine
// calling Run; Close and the accessors are safe from other goroutines.
type Conn struct {
	role  Role
	state int32
	cfg   Config
	t     *transport
	rto   *Estimator
	snsi  *Snsi

	src Source
	dst Sink
	snd *SendLedger
	rcv *RecvLedger

	win        sendWindow
	window     int
	roundStart int64
	peerSeq    uint32
	finSeq     uint32
	finTs      int64
	early      *Segment
	lastHeard  time.Time

	mu        sync.Mutex
	rounds    []Round
	closeOnce sync.Once
	closeErr  error
}

// Dial binds cfg.LocalPort and prepares an initiator that will send src
// to cfg.RemoteHost:cfg.RemotePort.
func Dial(
	cfg *Config,
	src Source,
) (
	*Conn,
	error,
) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	raddr, err := net.ResolveUDPAddr(
		"udp",
		cfg.RemoteAddr(),
	)
	if err != nil {
		return nil, errors.Wrap(
			err,
			"net.ResolveUDPAddr",
		)
	}
	conn, err := listenUDP(
		cfg.LocalPort,
		raddr,
	)
	if err != nil {
		return nil, err
	}
	return newConnWithOptions(
		RoleInitiator,
		cfg,
		conn,
		raddr,
		src,
		nil,
	)
}

// Listen binds cfg.LocalPort and prepares a responder that will write
// the received stream to dst.
func Listen(
	cfg *Config,
	dst Sink,
) (
	*Conn,
	error,
) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := listenUDP(
		cfg.LocalPort,
		nil,
	)
	if err != nil {
		return nil, err
	}
	return newConnWithOptions(
		RoleResponder,
		cfg,
		conn,
		nil,
		nil,
		dst,
	)
}

func newConnWithOptions(
	role Role,
	cfg *Config,
	conn net.PacketConn,
	raddr net.Addr,
	src Source,
	dst Sink,
) (
	*Conn,
	error,
) {
	if cfg.LossRate > 0 {
		conn = NewLossyConn(
			conn,
			RandomDrop(
				cfg.LossRate,
				time.Now().UnixNano(),
			),
		)
	}
	c, err := NewConn(
		role,
		cfg,
		conn,
		raddr,
		src,
		dst,
	)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if cfg.DSCP > 0 {
		if err := c.t.setDSCP(
			cfg.DSCP,
		); err != nil {
			log.Warningf(
				"SetDSCP %d: %v",
				cfg.DSCP,
				err,
			)
		}
	}
	return c, nil
}

// NewConn builds a Conn over an existing packet connection, which it
// takes ownership of. An initiator needs raddr and src; a responder
// needs dst and learns its peer from the first SYN.
func NewConn(
	role Role,
	cfg *Config,
	conn net.PacketConn,
	raddr net.Addr,
	src Source,
	dst Sink,
) (
	*Conn,
	error,
) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch role {
	case RoleInitiator:
		if raddr == nil || src == nil {
			return nil, errors.Wrap(
				ErrInvalidConfig,
				"initiator needs a remote address and a source",
			)
		}
	case RoleResponder:
		if dst == nil {
			return nil, errors.Wrap(
				ErrInvalidConfig,
				"responder needs a sink",
			)
		}
	default:
		return nil, errors.New(
			errInvalidOperation,
		)
	}
	c := &Conn{
		role: role,
		cfg:  *cfg,
		src:  src,
		dst:  dst,
		snsi: newSnsi(),
	}
	c.t = newTransport(
		conn,
		raddr,
		cfg.MTU,
		c.snsi,
	)
	c.rto = NewEstimator(
		cfg.InitialRTO,
		cfg.MinRTO,
		cfg.MaxRTO,
	)
	return c, nil
}

// Run performs handshake, data transfer and teardown. It returns nil on
// success and always leaves the Conn closed.
func (
	c *Conn,
) Run() (
	err error,
) {
	c.heard()
	defer func() {
		c.release(
			err,
		)
	}()
	switch c.role {
	case RoleInitiator:
		if err = c.dialHandshake(); err != nil {
			return err
		}
		c.snd = NewSendLedger(
			c.src,
			c.cfg.MTU,
		)
		if err = c.sendData(); err != nil {
			return err
		}
		return c.sendClose()
	default:
		if err = c.acceptHandshake(); err != nil {
			return err
		}
		c.rcv = NewRecvLedger(
			c.dst,
		)
		if err = c.recvData(); err != nil {
			return err
		}
		return c.recvClose()
	}
}

// Close aborts the connection and releases the socket.
func (
	c *Conn,
) Close() error {
	c.closeOnce.Do(
		func() {
			c.closeErr = c.t.close()
		},
	)
	return c.closeErr
}

func (
	c *Conn,
) release(
	err error,
) {
	c.setState(
		StateClosed,
	)
	c.Close()
	if err != nil {
		log.Errorf(
			"%v: transfer failed: %v",
			c.role,
			err,
		)
		return
	}
	log.Infof(
		"%v: transfer complete",
		c.role,
	)
}

// State returns the current lifecycle state.
func (
	c *Conn,
) State() State {
	return State(
		atomic.LoadInt32(
			&c.state,
		),
	)
}

func (
	c *Conn,
) setState(
	s State,
) {
	old := State(
		atomic.SwapInt32(
			&c.state,
			int32(s),
		),
	)
	if old != s {
		log.Infof(
			"%v: %v -> %v",
			c.role,
			old,
			s,
		)
	}
}

// Role returns the role of the Conn.
func (
	c *Conn,
) Role() Role {
	return c.role
}

// Snsi returns a snapshot of the connection counters.
func (
	c *Conn,
) Snsi() *Snsi {
	return c.snsi.Copy()
}

// Rounds returns the sender round history.
func (
	c *Conn,
) Rounds() []Round {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(
		[]Round,
		len(c.rounds),
	)
	copy(
		out,
		c.rounds,
	)
	return out
}

// Estimator exposes the timeout estimator, mainly for diagnostics.
func (
	c *Conn,
) Estimator() *Estimator {
	return c.rto
}

// LocalAddr returns the bound local address.
func (
	c *Conn,
) LocalAddr() net.Addr {
	return c.t.rconn.LocalAddr()
}

// RemoteAddr returns the peer address, nil until a responder has seen a SYN.
func (
	c *Conn,
) RemoteAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t.raddr
}

func (
	c *Conn,
) heard() {
	c.lastHeard = time.Now()
}

func (
	c *Conn,
) idle(
	now time.Time,
) bool {
	return now.Sub(
		c.lastHeard,
	) > c.cfg.InactivityCeiling
}

func (
	c *Conn,
) idleErr() error {
	return errors.Wrapf(
		ErrInactivityCeiling,
		"nothing heard from peer for %v",
		c.cfg.InactivityCeiling,
	)
}

// pollDeadline bounds a wait by the inactivity ceiling.
func (
	c *Conn,
) pollDeadline(
	d time.Time,
) time.Time {
	limit := c.lastHeard.Add(
		c.cfg.InactivityCeiling,
	)
	if limit.Before(
		d,
	) {
		return limit
	}
	return d
}

func (
	c *Conn,
) violation(
	seg *Segment,
	want string,
) {
	incr(
		&c.snsi.ProtocolViolations,
	)
	log.Infof(
		"%v: %v: got %v, want %s",
		c.role,
		ErrProtocolViolation,
		seg,
		want,
	)
}

func (
	c *Conn,
) resend(
	seg *Segment,
) error {
	incr(
		&c.snsi.Retransmissions,
	)
	return c.t.send(
		seg,
	)
}

// sendRepeated sends an unacknowledged control segment GfstpAckRepeat times.
func (
	c *Conn,
) sendRepeated(
	seg *Segment,
) error {
	for i := 0; i < GfstpAckRepeat; i++ {
		if err := c.t.send(
			seg,
		); err != nil {
			return err
		}
	}
	return nil
}

// echoSample feeds the estimator from an echoed timestamp.
func (
	c *Conn,
) echoSample(
	ts int64,
) {
	now := GfstpCurrentNs()
	if ts <= 0 || ts > now {
		return
	}
	c.rto.Sample(
		time.Duration(
			now - ts,
		),
	)
}
