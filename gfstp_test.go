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
	"fmt"
	"runtime"
	"testing"

	u "github.com/johnsonjh/leaktestfe"
	logging "github.com/op/go-logging"
	licn "go4.org/legal"
)

func init() {
	logging.SetLevel(
		logging.WARNING,
		"gfstp",
	)
}

func TestGoEnvironment(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	t.Log(
		fmt.Sprintf(
			"\n\tCompiler:\t%v (%v)\n\tSystem:\t\t%v/%v\n\tCPU(s):\t\t%v logical processor(s)\n\tGOMAXPROCS:\t%v\n",
			runtime.Compiler,
			runtime.Version(),
			runtime.GOOS,
			runtime.GOARCH,
			runtime.NumCPU(),
			runtime.GOMAXPROCS(
				-1,
			),
		),
	)
}

func TestGfstpLicense(
	t *testing.T,
) {
	defer u.Leakplug(
		t,
	)
	licenses := licn.Licenses()
	if len(
		licenses,
	) == 0 {
		t.Fatal(
			"\n\ngfstp_license_test.TestGfstpLicense FAILURE",
		)
	} else {
		t.Log(
			fmt.Sprintf(
				"\n\n%v\n",
				licenses,
			),
		)
	}
}
