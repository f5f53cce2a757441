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
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/johnsonjh/gfstp"
	"github.com/minio/cli"
	logging "github.com/op/go-logging"
	"github.com/pkg/errors"
)

var format = logging.MustStringFormatter(
	"%{color}%{time:15:04:05.000} %{shortfunc} ▶ %{level:.4s} %{id:03x}%{color:reset} %{message}",
)

var log = logging.MustGetLogger(
	"gfstp/cmd",
)

// Version ...
var Version = "1.0"

var globalFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "port, p",
		Usage: "local UDP port",
	},
	cli.StringFlag{
		Name:  "remote-ip, s",
		Usage: "remote host; selects sender mode",
	},
	cli.IntFlag{
		Name:  "remote-port, a",
		Usage: "remote UDP port (sender mode)",
	},
	cli.StringFlag{
		Name:  "file, f",
		Usage: "file to send or receive, - for stdin/stdout",
	},
	cli.IntFlag{
		Name:  "mtu, m",
		Usage: "maximum payload bytes per segment",
		Value: gfstp.GfstpMtuDef,
	},
	cli.IntFlag{
		Name:  "window, c",
		Usage: "maximum outstanding segments",
		Value: gfstp.GfstpWndDef,
	},
	cli.IntFlag{
		Name:  "max-retries",
		Usage: "resend budget per segment",
		Value: gfstp.GfstpMaxRetries,
	},
	cli.DurationFlag{
		Name:  "initial-rto",
		Usage: "retransmission timeout before the first RTT sample",
		Value: gfstp.GfstpRtoDef,
	},
	cli.DurationFlag{
		Name:  "timeout",
		Usage: "give up after this long without hearing from the peer",
		Value: gfstp.GfstpIdleLimit,
	},
	cli.IntFlag{
		Name:  "dscp",
		Usage: "DSCP value for outgoing datagrams",
	},
	cli.Float64Flag{
		Name:  "loss",
		Usage: "drop this fraction of outgoing datagrams (testing)",
	},
	cli.StringFlag{
		Name:  "config",
		Usage: "YAML configuration file",
	},
	cli.StringFlag{
		Name:  "log-level",
		Usage: "CRITICAL, ERROR, WARNING, NOTICE, INFO or DEBUG",
		Value: "INFO",
	},
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "gfstp"
	app.Usage = "reliable file transfer over UDP"
	app.Version = Version
	app.Flags = globalFlags
	app.Action = run
	return app
}

func setupLogging(
	level string,
) error {
	lvl, err := logging.LogLevel(
		level,
	)
	if err != nil {
		return errors.Wrap(
			err,
			"log level",
		)
	}
	backend := logging.AddModuleLevel(
		logging.NewBackendFormatter(
			logging.NewLogBackend(
				os.Stderr,
				"",
				0,
			),
			format,
		),
	)
	backend.SetLevel(
		lvl,
		"",
	)
	logging.SetBackend(
		backend,
	)
	return nil
}

func run(
	c *cli.Context,
) error {
	cfg := gfstp.DefaultConfig()
	if path := c.String(
		"config",
	); path != "" {
		loaded, err := gfstp.LoadConfig(
			path,
		)
		if err != nil {
			color.Red(
				"%v",
				err,
			)
			return err
		}
		cfg = loaded
	}
	loadFromContext(
		c,
		cfg,
	)
	if err := setupLogging(
		cfg.LogLevel,
	); err != nil {
		color.Red(
			"%v",
			err,
		)
		return err
	}
	if err := cfg.Validate(); err != nil {
		color.Red(
			"%v",
			err,
		)
		return err
	}
	if cfg.File == "" {
		err := errors.Wrap(
			gfstp.ErrInvalidConfig,
			"no file given (-f)",
		)
		color.Red(
			"%v",
			err,
		)
		return err
	}

	conn, closer, err := open(
		cfg,
	)
	if err != nil {
		color.Red(
			"%v",
			err,
		)
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	go func() {
		s := make(
			chan os.Signal,
			1,
		)
		signal.Notify(
			s,
			os.Interrupt,
			syscall.SIGTERM,
		)
		<-s
		log.Warning(
			"interrupted, aborting transfer",
		)
		conn.Close()
	}()

	if cfg.IsSender() {
		log.Infof(
			"sending %s to %s",
			cfg.File,
			cfg.RemoteAddr(),
		)
	} else {
		log.Infof(
			"waiting on %v, writing to %s",
			conn.LocalAddr(),
			cfg.File,
		)
	}
	err = conn.Run()
	report(
		os.Stderr,
		conn,
		err,
	)
	return err
}

// open builds the Conn for the configured mode together with the file
// that must be closed once the transfer ends.
func open(
	cfg *gfstp.Config,
) (
	*gfstp.Conn,
	io.Closer,
	error,
) {
	if cfg.IsSender() {
		var (
			src *gfstp.ReaderSource
			err error
		)
		if cfg.File == "-" {
			src = gfstp.NewReaderSource(
				os.Stdin,
				cfg.MTU,
			)
		} else if src, err = gfstp.OpenFileSource(
			cfg.File,
			cfg.MTU,
		); err != nil {
			return nil, nil, err
		}
		conn, err := gfstp.Dial(
			cfg,
			src,
		)
		return conn, nil, err
	}
	if cfg.File == "-" {
		conn, err := gfstp.Listen(
			cfg,
			gfstp.NewWriterSink(
				os.Stdout,
			),
		)
		return conn, nil, err
	}
	sink, f, err := gfstp.CreateFileSink(
		cfg.File,
	)
	if err != nil {
		return nil, nil, err
	}
	conn, err := gfstp.Listen(
		cfg,
		sink,
	)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return conn, f, nil
}

func report(
	w io.Writer,
	conn *gfstp.Conn,
	err error,
) {
	snsi := conn.Snsi()
	tw := tabwriter.NewWriter(
		w,
		0,
		4,
		2,
		' ',
		0,
	)
	names := snsi.Header()
	values := snsi.ToSlice()
	for i := range names {
		fmt.Fprintf(
			tw,
			"%s\t%s\n",
			names[i],
			values[i],
		)
	}
	if rounds := conn.Rounds(); len(rounds) > 0 {
		fmt.Fprintf(
			tw,
			"Rounds\t%d\n",
			len(rounds),
		)
	}
	est := conn.Estimator()
	fmt.Fprintf(
		tw,
		"SmoothedRTT\t%v\nDeviation\t%v\n",
		est.SmoothedRTT(),
		est.Deviation(),
	)
	tw.Flush()
	if err != nil {
		color.New(
			color.FgRed,
		).Fprintf(
			w,
			"%v: transfer failed: %v\n",
			conn.Role(),
			err,
		)
	} else {
		color.New(
			color.FgGreen,
		).Fprintf(
			w,
			"%v: transfer complete\n",
			conn.Role(),
		)
	}
}
