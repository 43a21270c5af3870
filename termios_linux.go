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
	ioctlTcgetattr = unix.TCGETS
	ioctlTcsetattr = unix.TCSETS
)

// Linux spells FIONREAD as TIOCINQ.
const ioctlBytesToRead = unix.TIOCINQ

const (
	tcCMSPAR uint64 = unix.CMSPAR
	tcIUCLC  uint64 = unix.IUCLC
)

func termiosMask(v uint64) uint32 {
	return uint32(v)
}

var databitsMap = map[DataBits]uint32{
	DataBits5: unix.CS5,
	DataBits6: unix.CS6,
	DataBits7: unix.CS7,
	DataBits8: unix.CS8,
}

// baudrateMap lists the rates Linux advertises symbolic constants for.
// Everything else goes through the termios2/BOTHER path.
var baudrateMap = map[uint32]uint32{
	50:      unix.B50,
	75:      unix.B75,
	110:     unix.B110,
	134:     unix.B134,
	150:     unix.B150,
	200:     unix.B200,
	300:     unix.B300,
	600:     unix.B600,
	1200:    unix.B1200,
	1800:    unix.B1800,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1152000: unix.B1152000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
	2500000: unix.B2500000,
	3000000: unix.B3000000,
	3500000: unix.B3500000,
	4000000: unix.B4000000,
}

// setTermSettingsBaudrate folds a symbolic baud rate into the termios
// structure. Rates with no symbolic constant report special == true and are
// applied afterwards with setSpecialBaudrate.
func setTermSettingsBaudrate(b BaudRate, tio *unix.Termios) (special bool, err error) {
	if b.Speed() == 0 {
		return false, NewPortError(InvalidInput, "invalid baud rate 0")
	}
	bits, ok := baudrateMap[b.Speed()]
	if !ok {
		return true, nil
	}
	tio.Cflag &^= termiosMask(unix.CBAUD)
	tio.Cflag |= bits
	tio.Ispeed = bits
	tio.Ospeed = bits
	return false, nil
}

// getBaudrate reads the configured rate back from the device. A rate set
// through BOTHER is only visible via the termios2 interface.
func (port *unixPort) getBaudrate() (BaudRate, bool) {
	tio, err := port.termSettings()
	if err != nil {
		return BaudRate{}, false
	}
	bits := tio.Cflag & termiosMask(unix.CBAUD)
	if bits == unix.BOTHER {
		tio2, err := unix.IoctlGetTermios(port.handle, unix.TCGETS2)
		if err != nil || tio2.Ispeed == 0 {
			return BaudRate{}, false
		}
		return BaudRateFromSpeed(tio2.Ispeed), true
	}
	for speed, speedBits := range baudrateMap {
		if speedBits == bits {
			return BaudRateFromSpeed(speed), true
		}
	}
	return BaudRate{}, false
}

// setSpecialBaudrate configures an arbitrary rate through the termios2
// interface.
func (port *unixPort) setSpecialBaudrate(speed uint32) error {
	tio, err := unix.IoctlGetTermios(port.handle, unix.TCGETS2)
	if err != nil {
		return classifyErrno("unable to set baud rate", err)
	}
	tio.Cflag &^= unix.CBAUD
	tio.Cflag |= unix.BOTHER
	tio.Ispeed = speed
	tio.Ospeed = speed
	if err := unix.IoctlSetTermios(port.handle, unix.TCSETS2, tio); err != nil {
		return classifyErrno("unable to set baud rate", err)
	}
	return nil
}

func flushInput(handle int) error {
	return unix.IoctlSetInt(handle, unix.TCFLSH, unix.TCIFLUSH)
}

func flushOutput(handle int) error {
	return unix.IoctlSetInt(handle, unix.TCFLSH, unix.TCOFLUSH)
}

func nativeAvailableBaudRates() []uint32 {
	rates := make([]uint32, 0, len(baudrateMap))
	for speed := range baudrateMap {
		rates = append(rates, speed)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i] < rates[j] })
	return rates
}
