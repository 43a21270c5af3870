//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serialport_test

import (
	"fmt"
	"log"

	serialport "github.com/tewtal/serialport-rs"
)

func ExampleAvailablePorts() {
	ports, err := serialport.AvailablePorts()
	if err != nil {
		log.Fatal(err)
	}
	if len(ports) == 0 {
		log.Fatal("No serial ports found!")
	}

	// Print the list of detected ports
	for _, port := range ports {
		fmt.Printf("Found port: %v\n", port.Name)
		if port.Type == serialport.PortTypeUSB {
			fmt.Printf("  USB ID     %04x:%04x\n", port.USB.VID, port.USB.PID)
			fmt.Printf("  USB serial %s\n", port.USB.SerialNumber)
		}
	}
}

func ExampleOpenWithSettings() {
	// Open the port at 115200bps N81
	settings := serialport.DefaultSettings()
	settings.BaudRate = serialport.Baud115200
	port, err := serialport.OpenWithSettings("/dev/ttyUSB0", settings)
	if err != nil {
		log.Fatal(err)
	}
	defer port.Close()

	// Send the string "10,20,30" to the serial port
	n, err := port.Write([]byte("10,20,30\n\r"))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Sent %v bytes\n", n)

	// Read and print the response
	buff := make([]byte, 100)
	for {
		n, err := port.Read(buff)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s", string(buff[:n]))

		// If we receive a newline stop reading
		if buff[n-1] == '\n' {
			break
		}
	}
}

func ExamplePort_GetModemStatusBits() {
	port, err := serialport.Open("/dev/ttyACM1")
	if err != nil {
		log.Fatal(err)
	}
	defer port.Close()

	status, err := port.GetModemStatusBits()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Status: %+v\n", status)

	if err := port.SetDTR(false); err != nil {
		log.Fatal(err)
	}
	if err := port.SetRTS(true); err != nil {
		log.Fatal(err)
	}
}
