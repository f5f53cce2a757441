// Copyright © 2015 Daniel Fu <daniel820313@gmail.com>.
// Copyright © 2019 Loki 'l0k18' Verloren <stalker.loki@protonmail.ch>.
// Copyright © 2020 Gridfinity, LLC. <admin@gridfinity.com>.
// Copyright © 2020 Jeffrey H. Johnson <jeff@gridfinity.com>.
//
// All rights reserved.
//
// All use of this code is governed by the MIT license.
// The complete license is available in the LICENSE file.

package main

import (
	"bytes"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/johnsonjh/gfstp"
	u "github.com/johnsonjh/leaktestfe"
	"github.com/minio/cli"
)

func TestLoadFromContext(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	cfg := gfstp.DefaultConfig()
	cfg.Window = 32
	app := newApp()
	app.Action = func(
		c *cli.Context,
	) error {
		loadFromContext(
			c,
			cfg,
		)
		return nil
	}
	if err := app.Run(
		[]string{
			"gfstp",
			"--remote-ip", "10.0.0.1",
			"--remote-port", "9000",
			"--mtu", "512",
			"--timeout", "5s",
			"--loss", "0.1",
			"--file", "payload.bin",
		},
	); err != nil {
		t.Fatal(
			err,
		)
	}
	if cfg.RemoteHost != "10.0.0.1" || cfg.RemotePort != 9000 ||
		cfg.MTU != 512 || cfg.File != "payload.bin" {
		t.Fatalf(
			"flags not applied: %+v",
			cfg,
		)
	}
	if cfg.InactivityCeiling != 5*time.Second || cfg.LossRate != 0.1 {
		t.Fatalf(
			"timeout %v loss %v",
			cfg.InactivityCeiling,
			cfg.LossRate,
		)
	}
	// Unset flags keep the value from the config file.
	if cfg.Window != 32 || cfg.MaxRetries != gfstp.GfstpMaxRetries {
		t.Fatalf(
			"window %d retries %d",
			cfg.Window,
			cfg.MaxRetries,
		)
	}
}

func TestReport(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	pc, err := net.ListenUDP(
		"udp4",
		&net.UDPAddr{
			IP: net.IPv4(
				127,
				0,
				0,
				1,
			),
		},
	)
	if err != nil {
		t.Fatal(
			err,
		)
	}
	conn, err := gfstp.NewConn(
		gfstp.RoleResponder,
		gfstp.DefaultConfig(),
		pc,
		nil,
		nil,
		gfstp.NewWriterSink(
			&bytes.Buffer{},
		),
	)
	if err != nil {
		t.Fatal(
			err,
		)
	}
	defer conn.Close()
	var out bytes.Buffer
	report(
		&out,
		conn,
		nil,
	)
	for _, want := range []string{
		"SegmentsSent",
		"OutOfOrderDrops",
		"SmoothedRTT",
		"responder: transfer complete",
	} {
		if !strings.Contains(
			out.String(),
			want,
		) {
			t.Fatalf(
				"report lacks %q:\n%s",
				want,
				out.String(),
			)
		}
	}
	out.Reset()
	report(
		&out,
		conn,
		gfstp.ErrInactivityCeiling,
	)
	if !strings.Contains(
		out.String(),
		"transfer failed: inactivity",
	) {
		t.Fatalf(
			"failure line missing:\n%s",
			out.String(),
		)
	}
}
