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
	"github.com/pkg/errors"
)

// Error taxonomy. Only ErrRetryBudgetExhausted, ErrInactivityCeiling,
// ErrIoFailure and ErrClosed ever reach the caller of Run; the rest are
// recovered locally.
var (
	ErrCorruptSegment       = errors.New("corrupt segment")
	ErrProtocolViolation    = errors.New("protocol violation")
	ErrTimeout              = errors.New("i/o timeout")
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
	ErrInactivityCeiling    = errors.New("inactivity ceiling exceeded")
	ErrIoFailure            = errors.New("i/o failure")
	ErrOversizedPayload     = errors.New("payload exceeds maximum segment size")
	ErrNonContiguousWrite   = errors.New("non-contiguous write")
	ErrFileExists           = errors.New("file already exists")
	ErrClosed               = errors.New("connection closed")
	ErrInvalidConfig        = errors.New("invalid configuration")
)

const (
	errInvalidOperation = "invalid operation"
	errForeignPeer      = "datagram from foreign peer"
)

type errTimeout struct {
	error
}

func (
	errTimeout,
) Timeout() bool {
	return true
}

func (
	errTimeout,
) Temporary() bool {
	return true
}

func (
	e errTimeout,
) Unwrap() error {
	return e.error
}

func newErrTimeout() error {
	return errTimeout{
		ErrTimeout,
	}
}

// IsTimeout reports whether err is a receive deadline expiry.
func IsTimeout(
	err error,
) bool {
	if err == nil {
		return false
	}
	if te, ok := errors.Cause(
		err,
	).(interface{ Timeout() bool }); ok {
		return te.Timeout()
	}
	return errors.Is(
		err,
		ErrTimeout,
	)
}

// IsFatal reports whether err ends the connection.
func IsFatal(
	err error,
) bool {
	switch errors.Cause(
		err,
	) {
	case ErrRetryBudgetExhausted,
		ErrInactivityCeiling,
		ErrIoFailure,
		ErrClosed:
		return true
	}
	return false
}

func ioFailure(
	op string,
	err error,
) error {
	return errors.Wrapf(
		ErrIoFailure,
		"%s: %v",
		op,
		err,
	)
}
