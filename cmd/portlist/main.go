//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// portlist is a tool to list all the available serial ports.
// Just run it and it will produce an output like:
//
//	$ go run ./cmd/portlist
//	Port: /dev/ttyS0
//	Port: /dev/ttyUSB0
//	   USB ID     2341:8053
//	   USB serial FB7B6060504B5952302E314AFF08191A
package main

import (
	"fmt"
	"log"

	serialport "github.com/tewtal/serialport-rs"
)

func main() {
	ports, err := serialport.AvailablePorts()
	if err != nil {
		log.Fatal(err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found!")
		return
	}
	for _, port := range ports {
		fmt.Printf("Port: %s\n", port.Name)
		if port.Type == serialport.PortTypeUSB {
			fmt.Printf("   USB ID     %04x:%04x\n", port.USB.VID, port.USB.PID)
			fmt.Printf("   USB serial %s\n", port.USB.SerialNumber)
		}
	}
}
