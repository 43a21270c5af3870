//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

/*
Package serialport is a cross-platform serial port library for the Go
language.

It is possible to get the list of available serial ports with the
AvailablePorts function:

	ports, err := serialport.AvailablePorts()
	if err != nil {
		log.Fatal(err)
	}
	if len(ports) == 0 {
		log.Fatal("No serial ports found!")
	}
	for _, port := range ports {
		fmt.Printf("Found port: %v\n", port.Name)
	}

Each discovered port carries the bus type it is attached through and, for
USB devices, the vendor/product identification and descriptor strings.

A serial port can be opened with the Open function, which uses the default
9600-8-N-1 configuration, or with OpenWithSettings:

	settings := serialport.DefaultSettings()
	settings.BaudRate = serialport.Baud115200
	port, err := serialport.OpenWithSettings("/dev/ttyUSB0", settings)
	if err != nil {
		log.Fatal(err)
	}

The configuration can be changed at any time, field by field or atomically
with the SetAll method:

	if err := port.SetBaudRate(serialport.Baud57600); err != nil {
		log.Fatal(err)
	}

The port object implements the io.ReadWriteCloser interface, so the usual
Read, Write and Close functions send and receive data from the serial port:

	n, err := port.Write([]byte("10,20,30\n\r"))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Sent %v bytes\n", n)

	buff := make([]byte, 100)
	for {
		n, err := port.Read(buff)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%v", string(buff[:n]))
	}

A Read call gives up after the configured timeout and returns an error that
satisfies errors.Is(err, os.ErrDeadlineExceeded); a zero timeout blocks
until at least one byte arrives.

This library doesn't make use of cgo, so it's a pure go library that can be
easily cross compiled.
*/
package serialport
