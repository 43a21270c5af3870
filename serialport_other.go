//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build !linux && !darwin && !windows

package serialport

func nativeOpen(name string, settings Settings) (Port, error) {
	return nil, NewPortError(Unknown, "serial ports are not supported on this platform")
}

func nativeAvailablePorts() ([]*PortInfo, error) {
	return nil, NewPortError(Unknown, "port enumeration is not supported on this platform")
}

func nativeAvailableBaudRates() []uint32 {
	return nil
}
