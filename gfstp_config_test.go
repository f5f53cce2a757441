// Copyright © 2015 Daniel Fu <daniel820313@gmail.com>.
// Copyright © 2019 Loki 'l0k18' Verloren <stalker.loki@protonmail.ch>.
// Copyright © 2020 Gridfinity, LLC. <admin@gridfinity.com>.
// Copyright © 2020 Jeffrey H. Johnson <jeff@gridfinity.com>.
//
// All rights reserved.
//
// All use of this code is governed by the MIT license.
// The complete license is available in the LICENSE file.

package gfstp_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/johnsonjh/gfstp"
	u "github.com/johnsonjh/leaktestfe"
	"github.com/pkg/errors"
)

func TestLoadConfig(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	path := filepath.Join(
		t.TempDir(),
		"gfstp.yaml",
	)
	doc := `
remote_host: 127.0.0.1
remote_port: 9000
file: payload.bin
window: 32
initial_rto: 750ms
close_timeout: 1s
loss_rate: 0.05
`
	if err := os.WriteFile(
		path,
		[]byte(doc),
		0o644,
	); err != nil {
		t.Fatal(
			err,
		)
	}
	cfg, err := gfstp.LoadConfig(
		path,
	)
	if err != nil {
		t.Fatal(
			err,
		)
	}
	if !cfg.IsSender() || cfg.RemoteAddr() != "127.0.0.1:9000" {
		t.Fatalf(
			"remote %q sender %v",
			cfg.RemoteAddr(),
			cfg.IsSender(),
		)
	}
	if cfg.Window != 32 || cfg.InitialRTO != 750*time.Millisecond ||
		cfg.CloseTimeout != time.Second || cfg.LossRate != 0.05 {
		t.Fatalf(
			"decoded %+v",
			cfg,
		)
	}
	if cfg.MTU != gfstp.GfstpMtuDef || cfg.MaxRetries != gfstp.GfstpMaxRetries {
		t.Fatalf(
			"defaults lost: %+v",
			cfg,
		)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(
			err,
		)
	}
}

func TestLoadConfigErrors(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	dir := t.TempDir()
	if _, err := gfstp.LoadConfig(
		filepath.Join(dir, "missing.yaml"),
	); err == nil {
		t.Fatal(
			"missing file accepted",
		)
	}
	bad := filepath.Join(
		dir,
		"bad.yaml",
	)
	if err := os.WriteFile(
		bad,
		[]byte("window: [1, 2"),
		0o644,
	); err != nil {
		t.Fatal(
			err,
		)
	}
	if _, err := gfstp.LoadConfig(
		bad,
	); err == nil {
		t.Fatal(
			"malformed yaml accepted",
		)
	}
}

func TestConfigValidate(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	empty := &gfstp.Config{}
	if err := empty.Validate(); err != nil {
		t.Fatal(
			err,
		)
	}
	if empty.IsSender() || empty.Window != gfstp.GfstpWndDef ||
		empty.CloseTimeout != gfstp.GfstpCloseWait {
		t.Fatalf(
			"defaults not filled: %+v",
			empty,
		)
	}
	for name, mutate := range map[string]func(*gfstp.Config){
		"mtu": func(c *gfstp.Config) {
			c.MTU = gfstp.GfstpMtuLimit
		},
		"window": func(c *gfstp.Config) {
			c.Window = -1
		},
		"retries": func(c *gfstp.Config) {
			c.MaxRetries = -3
		},
		"port": func(c *gfstp.Config) {
			c.LocalPort = 70000
		},
		"remote": func(c *gfstp.Config) {
			c.RemoteHost = "localhost"
		},
		"rto": func(c *gfstp.Config) {
			c.MinRTO = time.Minute
			c.MaxRTO = time.Second
		},
		"dscp": func(c *gfstp.Config) {
			c.DSCP = 64
		},
		"loss": func(c *gfstp.Config) {
			c.LossRate = 1
		},
	} {
		cfg := gfstp.DefaultConfig()
		mutate(
			cfg,
		)
		if err := cfg.Validate(); errors.Cause(
			err,
		) != gfstp.ErrInvalidConfig {
			t.Errorf(
				"%s: Validate = %v",
				name,
				err,
			)
		}
	}
}
