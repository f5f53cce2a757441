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
)

// Estimator keeps the smoothed round-trip time (ERTT) and deviation
// (EDEV) and derives the retransmission timeout from them.
type Estimator struct {
	ertt    time.Duration
	edev    time.Duration
	rto     time.Duration
	floor   time.Duration
	ceiling time.Duration
	forced  time.Duration
	samples uint64
}

// NewEstimator returns an estimator that reports initial until the
// first sample arrives. Non-positive bounds fall back to GfstpRtoMin
// and GfstpRtoMax.
func NewEstimator(
	initial,
	floor,
	ceiling time.Duration,
) *Estimator {
	if floor <= 0 {
		floor = GfstpRtoMin
	}
	if ceiling < floor {
		ceiling = _dmax(
			GfstpRtoMax,
			floor,
		)
	}
	if initial <= 0 {
		initial = GfstpRtoDef
	}
	return &Estimator{
		rto: _dbound(
			floor,
			initial,
			ceiling,
		),
		floor:   floor,
		ceiling: ceiling,
	}
}

// Sample feeds one round-trip measurement. Callers must not pass
// samples taken from retransmitted segments.
func (
	e *Estimator,
) Sample(
	rtt time.Duration,
) {
	rtt = _dabs(
		rtt,
	)
	if e.samples == 0 {
		e.ertt = rtt
		e.edev = 0
		e.rto = 2 * e.ertt
	} else {
		dev := _dabs(
			rtt - e.ertt,
		)
		e.ertt = (7*e.ertt + rtt) / 8
		e.edev = (3*e.edev + dev) / 4
		e.rto = e.ertt + 4*e.edev
	}
	e.samples++
	e.rto = _dbound(
		e.floor,
		e.rto,
		e.ceiling,
	)
}

// Timeout returns the forced timeout if one is set, else the adaptive one.
func (
	e *Estimator,
) Timeout() time.Duration {
	if e.forced > 0 {
		return e.forced
	}
	return e.rto
}

// IsTimedOut reports whether |now - sentAt| exceeds the timeout.
func (
	e *Estimator,
) IsTimedOut(
	now,
	sentAt time.Time,
) bool {
	return _dabs(
		now.Sub(
			sentAt,
		),
	) > e.Timeout()
}

// Force pins the timeout to d until Unforce. Used during teardown.
func (
	e *Estimator,
) Force(
	d time.Duration,
) {
	if d <= 0 {
		d = e.floor
	}
	e.forced = d
}

// Unforce returns to the adaptive timeout.
func (
	e *Estimator,
) Unforce() {
	e.forced = 0
}

// SmoothedRTT returns ERTT.
func (
	e *Estimator,
) SmoothedRTT() time.Duration {
	return e.ertt
}

// Deviation returns EDEV.
func (
	e *Estimator,
) Deviation() time.Duration {
	return e.edev
}

// Samples returns how many samples have been accepted.
func (
	e *Estimator,
) Samples() uint64 {
	return e.samples
}
