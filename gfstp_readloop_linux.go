// Copyright © 2015 Daniel Fu <daniel820313@gmail.com>.
// Copyright © 2019 Loki 'l0k18' Verloren <stalker.loki@protonmail.ch>.
// Copyright © 2020 Gridfinity, LLC. <admin@gridfinity.com>.
// Copyright © 2020 Jeffrey H. Johnson <jeff@gridfinity.com>.
//
// All rights reserved.
//
// All use of this code is governed by the MIT license.
// The complete license is available in the LICENSE file.

//go:build linux
// +build linux

package gfstp // import "github.com/johnsonjh/gfstp"

import (
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	batchSize = 16
)

// batchReader pulls up to batchSize datagrams per recvmmsg call.
type batchReader struct {
	v4   *ipv4.PacketConn
	v6   *ipv6.PacketConn
	msgs []ipv4.Message
}

func newBatchReader(
	conn net.PacketConn,
) *batchReader {
	uc, ok := conn.(*net.UDPConn)
	if !ok {
		return nil
	}
	addr, _ := net.ResolveUDPAddr(
		"udp",
		uc.LocalAddr().String(),
	)
	if addr == nil {
		return nil
	}
	b := &batchReader{
		msgs: make(
			[]ipv4.Message,
			batchSize,
		),
	}
	for k := range b.msgs {
		b.msgs[k].Buffers = [][]byte{
			make(
				[]byte,
				GfstpMtuLimit,
			),
		}
	}
	if addr.IP.To4() != nil {
		b.v4 = ipv4.NewPacketConn(
			uc,
		)
	} else {
		b.v6 = ipv6.NewPacketConn(
			uc,
		)
	}
	return b
}

func (
	b *batchReader,
) read(
	t *transport,
) error {
	var (
		count int
		err   error
	)
	if b.v4 != nil {
		count, err = b.v4.ReadBatch(
			b.msgs,
			0,
		)
	} else {
		count, err = b.v6.ReadBatch(
			b.msgs,
			0,
		)
	}
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		msg := &b.msgs[i]
		if msg.N < GfstpOverhead {
			incr(
				&t.snsi.InputErrors,
			)
			continue
		}
		t.push(
			msg.Buffers[0][:msg.N],
			msg.Addr,
		)
	}
	return nil
}
