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
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of one connection. Zero durations and
// counts are replaced by defaults in Validate.
type Config struct {
	LocalPort         int           `yaml:"local_port" flag:"port"`
	RemoteHost        string        `yaml:"remote_host" flag:"remote-ip"`
	RemotePort        int           `yaml:"remote_port" flag:"remote-port"`
	File              string        `yaml:"file" flag:"file"`
	MTU               int           `yaml:"mtu" flag:"mtu"`
	Window            int           `yaml:"window" flag:"window"`
	MaxRetries        int           `yaml:"max_retries" flag:"max-retries"`
	InitialRTO        time.Duration `yaml:"initial_rto" flag:"initial-rto"`
	MinRTO            time.Duration `yaml:"min_rto"`
	MaxRTO            time.Duration `yaml:"max_rto"`
	RecvTimeout       time.Duration `yaml:"recv_timeout"`
	CloseTimeout      time.Duration `yaml:"close_timeout"`
	InactivityCeiling time.Duration `yaml:"inactivity_ceiling" flag:"timeout"`
	DSCP              int           `yaml:"dscp" flag:"dscp"`
	LossRate          float64       `yaml:"loss_rate" flag:"loss"`
	LogLevel          string        `yaml:"log_level" flag:"log-level"`
}

// DefaultConfig returns a responder configuration with every default set.
func DefaultConfig() *Config {
	return &Config{
		MTU:               GfstpMtuDef,
		Window:            GfstpWndDef,
		MaxRetries:        GfstpMaxRetries,
		InitialRTO:        GfstpRtoDef,
		MinRTO:            GfstpRtoMin,
		MaxRTO:            GfstpRtoMax,
		RecvTimeout:       GfstpRecvPoll,
		CloseTimeout:      GfstpCloseWait,
		InactivityCeiling: GfstpIdleLimit,
		LogLevel:          "INFO",
	}
}

// LoadConfig reads a YAML file over DefaultConfig.
func LoadConfig(
	path string,
) (
	*Config,
	error,
) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(
		path,
	)
	if err != nil {
		return nil, errors.Wrap(
			err,
			"os.ReadFile",
		)
	}
	if err := yaml.Unmarshal(
		data,
		cfg,
	); err != nil {
		return nil, errors.Wrapf(
			err,
			"yaml.Unmarshal %s",
			path,
		)
	}
	return cfg, nil
}

// IsSender reports whether the configuration names a remote peer.
func (
	c *Config,
) IsSender() bool {
	return c.RemoteHost != ""
}

// RemoteAddr returns host:port of the peer.
func (
	c *Config,
) RemoteAddr() string {
	return net.JoinHostPort(
		c.RemoteHost,
		strconv.Itoa(
			c.RemotePort,
		),
	)
}

// Validate fills unset fields with defaults and rejects impossible values.
func (
	c *Config,
) Validate() error {
	d := DefaultConfig()
	if c.MTU == 0 {
		c.MTU = d.MTU
	}
	if c.Window == 0 {
		c.Window = d.Window
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InitialRTO == 0 {
		c.InitialRTO = d.InitialRTO
	}
	if c.MinRTO == 0 {
		c.MinRTO = d.MinRTO
	}
	if c.MaxRTO == 0 {
		c.MaxRTO = d.MaxRTO
	}
	if c.RecvTimeout == 0 {
		c.RecvTimeout = d.RecvTimeout
	}
	if c.CloseTimeout == 0 {
		c.CloseTimeout = d.CloseTimeout
	}
	if c.InactivityCeiling == 0 {
		c.InactivityCeiling = d.InactivityCeiling
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	switch {
	case c.MTU < 1 || c.MTU > GfstpMtuLimit-GfstpOverhead:
		return errors.Wrapf(
			ErrInvalidConfig,
			"mtu %d outside 1..%d",
			c.MTU,
			GfstpMtuLimit-GfstpOverhead,
		)
	case c.Window < 1:
		return errors.Wrapf(
			ErrInvalidConfig,
			"window %d",
			c.Window,
		)
	case c.MaxRetries < 1:
		return errors.Wrapf(
			ErrInvalidConfig,
			"max_retries %d",
			c.MaxRetries,
		)
	case c.LocalPort < 0 || c.LocalPort > 65535:
		return errors.Wrapf(
			ErrInvalidConfig,
			"local_port %d",
			c.LocalPort,
		)
	case c.IsSender() && (c.RemotePort < 1 || c.RemotePort > 65535):
		return errors.Wrapf(
			ErrInvalidConfig,
			"remote_port %d",
			c.RemotePort,
		)
	case c.MinRTO > c.MaxRTO:
		return errors.Wrapf(
			ErrInvalidConfig,
			"min_rto %v > max_rto %v",
			c.MinRTO,
			c.MaxRTO,
		)
	case c.DSCP < 0 || c.DSCP > 63:
		return errors.Wrapf(
			ErrInvalidConfig,
			"dscp %d",
			c.DSCP,
		)
	case c.LossRate < 0 || c.LossRate >= 1:
		return errors.Wrapf(
			ErrInvalidConfig,
			"loss_rate %v",
			c.LossRate,
		)
	}
	return nil
}
