//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serialport

import (
	"sort"

	"golang.org/x/sys/unix"
)

const (
	ioctlTcgetattr = unix.TIOCGETA
	ioctlTcsetattr = unix.TIOCSETA
)

// FIONREAD, which x/sys does not define for this platform.
const ioctlBytesToRead = 0x4004667f

// macOS has neither mark/space parity nor lowercase mapping flags.
const (
	tcCMSPAR uint64 = 0
	tcIUCLC  uint64 = 0
)

func termiosMask(v uint64) uint64 {
	return v
}

var databitsMap = map[DataBits]uint64{
	DataBits5: unix.CS5,
	DataBits6: unix.CS6,
	DataBits7: unix.CS7,
	DataBits8: unix.CS8,
}

// baudrateMap lists the rates macOS advertises symbolic constants for.
// On BSD-style termios the constants equal the numeric speed, and many
// drivers accept arbitrary values in Ispeed/Ospeed directly.
var baudrateMap = map[uint32]uint64{
	50:     unix.B50,
	75:     unix.B75,
	110:    unix.B110,
	134:    unix.B134,
	150:    unix.B150,
	200:    unix.B200,
	300:    unix.B300,
	600:    unix.B600,
	1200:   unix.B1200,
	1800:   unix.B1800,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

// setTermSettingsBaudrate folds the baud rate into the termios structure.
// Arbitrary rates go straight into the speed fields, so no separate native
// call is ever needed on this platform.
func setTermSettingsBaudrate(b BaudRate, tio *unix.Termios) (special bool, err error) {
	if b.Speed() == 0 {
		return false, NewPortError(InvalidInput, "invalid baud rate 0")
	}
	if bits, ok := baudrateMap[b.Speed()]; ok {
		tio.Ispeed = bits
		tio.Ospeed = bits
		return false, nil
	}
	tio.Ispeed = uint64(b.Speed())
	tio.Ospeed = uint64(b.Speed())
	return false, nil
}

func (port *unixPort) getBaudrate() (BaudRate, bool) {
	tio, err := port.termSettings()
	if err != nil || tio.Ospeed == 0 {
		return BaudRate{}, false
	}
	return BaudRateFromSpeed(uint32(tio.Ospeed)), true
}

// setSpecialBaudrate is never reached on macOS because arbitrary rates are
// folded directly into the termios structure.
func (port *unixPort) setSpecialBaudrate(speed uint32) error {
	return NewPortError(InvalidInput, "baud rate not supported on this platform")
}

const (
	flushRead  = 0x1 // FREAD
	flushWrite = 0x2 // FWRITE
)

func flushInput(handle int) error {
	return unix.IoctlSetPointerInt(handle, unix.TIOCFLUSH, flushRead)
}

func flushOutput(handle int) error {
	return unix.IoctlSetPointerInt(handle, unix.TIOCFLUSH, flushWrite)
}

func nativeAvailableBaudRates() []uint32 {
	rates := make([]uint32, 0, len(baudrateMap))
	for speed := range baudrateMap {
		rates = append(rates, speed)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i] < rates[j] })
	return rates
}
