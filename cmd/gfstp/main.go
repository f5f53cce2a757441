// Copyright © 2015 Daniel Fu <daniel820313@gmail.com>.
// Copyright © 2019 Loki 'l0k18' Verloren <stalker.loki@protonmail.ch>.
// Copyright © 2020 Gridfinity, LLC. <admin@gridfinity.com>.
// Copyright © 2020 Jeffrey H. Johnson <jeff@gridfinity.com>.
//
// All rights reserved.
//
// All use of this code is governed by the MIT license.
// The complete license is available in the LICENSE file.

// Command gfstp transfers one file over UDP with the gfstp protocol.
//
// Receiver:	gfstp -p <port> -m <mtu> -c <window> -f <file>
// Sender:	gfstp -p <port> -s <remote-ip> -a <remote-port> -f <file> -m <mtu> -c <window>
package main

import (
	"os"
)

func main() {
	if err := newApp().Run(
		os.Args,
	); err != nil {
		os.Exit(
			1,
		)
	}
}
