// Copyright © 2015 Daniel Fu <daniel820313@gmail.com>.
// Copyright © 2019 Loki 'l0k18' Verloren <stalker.loki@protonmail.ch>.
// Copyright © 2020 Gridfinity, LLC. <admin@gridfinity.com>.
// Copyright © 2020 Jeffrey H. Johnson <jeff@gridfinity.com>.
//
// All rights reserved.
//
// All use of this code is governed by the MIT license.
// The complete license is available in the LICENSE file.

//go:build !linux
// +build !linux

package gfstp // import "github.com/johnsonjh/gfstp"

import (
	"net"
)

// batchReader is unavailable off linux; transport falls back to ReadFrom.
type batchReader struct{}

func newBatchReader(
	_ net.PacketConn,
) *batchReader {
	return nil
}

func (
	b *batchReader,
) read(
	_ *transport,
) error {
	return nil
}
