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
	"reflect"
	"time"

	"github.com/johnsonjh/gfstp"
	"github.com/minio/cli"
)

var durationType = reflect.TypeOf(
	time.Duration(0),
)

// loadFromContext copies every flag the user set onto the Config field
// carrying the matching `flag` tag, so flags win over a config file.
func loadFromContext(
	c *cli.Context,
	cfg *gfstp.Config,
) {
	v := reflect.ValueOf(
		cfg,
	).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(
			i,
		)
		tag := f.Tag.Get(
			"flag",
		)
		if tag == "" || !c.IsSet(
			tag,
		) {
			continue
		}
		dest := v.Field(
			i,
		)
		switch {
		case f.Type == durationType:
			dest.SetInt(
				int64(
					c.Duration(
						tag,
					),
				),
			)
		case f.Type.Kind() == reflect.Int:
			dest.SetInt(
				int64(
					c.Int(
						tag,
					),
				),
			)
		case f.Type.Kind() == reflect.Float64:
			dest.SetFloat(
				c.Float64(
					tag,
				),
			)
		case f.Type.Kind() == reflect.String:
			dest.SetString(
				c.String(
					tag,
				),
			)
		case f.Type.Kind() == reflect.Bool:
			dest.SetBool(
				c.Bool(
					tag,
				),
			)
		}
	}
}
