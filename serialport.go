//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serialport

import "time"

// BaudRate is a serial port speed in symbols per second.
//
// The predeclared values Baud110 ... Baud115200 are standard rates that are
// widely supported across hardware and drivers. Arbitrary rates can be built
// with BaudOther, but whether they work is platform and hardware dependent.
//
// BaudRate is a small value type and can be compared with ==.
type BaudRate struct {
	speed    uint32
	standard bool
}

// Standard baud rates.
var (
	Baud110    = BaudRate{110, true}
	Baud300    = BaudRate{300, true}
	Baud600    = BaudRate{600, true}
	Baud1200   = BaudRate{1200, true}
	Baud2400   = BaudRate{2400, true}
	Baud4800   = BaudRate{4800, true}
	Baud9600   = BaudRate{9600, true}
	Baud19200  = BaudRate{19200, true}
	Baud38400  = BaudRate{38400, true}
	Baud57600  = BaudRate{57600, true}
	Baud115200 = BaudRate{115200, true}
)

// BaudOther returns a non-standard baud rate of the given speed. Note that
// BaudOther(9600) is not the same value as Baud9600: use BaudRateFromSpeed
// to select the standard variant whenever the speed matches one.
func BaudOther(speed uint32) BaudRate {
	return BaudRate{speed, false}
}

// BaudRateFromSpeed returns the BaudRate for the given speed, picking the
// standard variant when one exists. For every speed n,
// BaudRateFromSpeed(n).Speed() == n.
func BaudRateFromSpeed(speed uint32) BaudRate {
	switch speed {
	case 110, 300, 600, 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
		return BaudRate{speed, true}
	}
	return BaudRate{speed, false}
}

// Speed returns the baud rate as an integer.
func (b BaudRate) Speed() uint32 {
	return b.speed
}

// Standard reports whether b is one of the standard rates.
func (b BaudRate) Standard() bool {
	return b.standard
}

// DataBits is the number of bits used to represent a character on the line.
type DataBits byte

const (
	// DataBits5 sets 5 bits per character
	DataBits5 DataBits = 5
	// DataBits6 sets 6 bits per character
	DataBits6 DataBits = 6
	// DataBits7 sets 7 bits per character
	DataBits7 DataBits = 7
	// DataBits8 sets 8 bits per character (default)
	DataBits8 DataBits = 8
)

// Parity describes a serial port parity setting
type Parity int

const (
	// NoParity disables parity control (default)
	NoParity Parity = iota
	// OddParity enables odd-parity check
	OddParity
	// EvenParity enables even-parity check
	EvenParity
)

// StopBits describes a serial port stop bits setting
type StopBits int

const (
	// OneStopBit sets 1 stop bit (default)
	OneStopBit StopBits = iota
	// TwoStopBits sets 2 stop bits
	TwoStopBits
)

// FlowControl describes how sender and receiver pace data transfer.
type FlowControl int

const (
	// NoFlowControl disables flow control (default)
	NoFlowControl FlowControl = iota
	// SoftwareFlowControl paces transfers with in-band XON/XOFF bytes
	SoftwareFlowControl
	// HardwareFlowControl paces transfers with the RTS/CTS signal pins
	HardwareFlowControl
)

// Settings describes a complete serial port configuration.
//
// Settings is a plain value: it is copied on assignment and never shared
// with an open port. Apply it with OpenWithSettings or Port.SetAll.
type Settings struct {
	// BaudRate is the port speed in symbols per second
	BaudRate BaudRate
	// DataBits is the character size on the line
	DataBits DataBits
	// FlowControl selects the transfer pacing mechanism
	FlowControl FlowControl
	// Parity selects the error-checking mode
	Parity Parity
	// StopBits is the number of bits signalling the end of a character
	StopBits StopBits
	// Timeout is how long a Read waits for data before giving up.
	// A zero or negative timeout blocks until at least one byte arrives.
	Timeout time.Duration
}

// DefaultSettings returns the canonical 9600-8-N-1 configuration with no
// flow control and a 1 millisecond read timeout.
func DefaultSettings() Settings {
	return Settings{
		BaudRate:    Baud9600,
		DataBits:    DataBits8,
		FlowControl: NoFlowControl,
		Parity:      NoParity,
		StopBits:    OneStopBit,
		Timeout:     time.Millisecond,
	}
}

// ModemStatusBits contains the state of the input modem control lines.
// It can be retrieved with the Port.GetModemStatusBits method.
type ModemStatusBits struct {
	CTS bool // ClearToSend
	DSR bool // DataSetReady
	RI  bool // RingIndicator
	DCD bool // DataCarrierDetect
}

// Port is the interface every platform serial port implementation satisfies.
//
// A Port owns exactly one native descriptor or handle for its whole lifetime;
// Close releases it. Ports are not safe for concurrent use: callers that
// share a Port between goroutines must serialize access themselves.
//
// The settings getters re-query the device on every call, so the value they
// return reflects the device's actual state rather than the last value set.
// Each returns ok == false when the device is configured in a way the
// portable model cannot represent; that is not an error.
type Port interface {
	// Read reads up to len(p) bytes into p. It blocks until at least one
	// byte is available or the configured timeout expires, in which case
	// it returns a timeout-classified *PortError.
	Read(p []byte) (n int, err error)

	// Write writes the content of p to the port.
	Write(p []byte) (n int, err error)

	// Close releases the underlying native resource. Double Close is an
	// error on an already-released handle.
	Close() error

	// Name returns the name the port was opened with. It may be empty for
	// virtual ports and is not guaranteed to be a canonical device name.
	Name() string

	// Settings returns the port's current configuration, re-read from the
	// device where the platform allows it.
	Settings() Settings

	// BaudRate returns the current baud rate, if it can be determined.
	BaudRate() (BaudRate, bool)

	// DataBits returns the current character size, if it can be determined.
	DataBits() (DataBits, bool)

	// FlowControl returns the current flow control mode, if it can be
	// determined.
	FlowControl() (FlowControl, bool)

	// Parity returns the current parity mode, if it can be determined.
	Parity() (Parity, bool)

	// StopBits returns the current stop bit count, if it can be determined.
	StopBits() (StopBits, bool)

	// Timeout returns the current read timeout.
	Timeout() time.Duration

	// SetAll applies every field of the given settings. The per-field order
	// is unspecified but the implementation folds as many fields as the
	// platform allows into a single native call; once it returns nil every
	// field has been applied.
	SetAll(settings Settings) error

	// SetBaudRate sets the baud rate. Rates the platform cannot represent
	// fail with an InvalidInput error.
	SetBaudRate(baudRate BaudRate) error

	// SetDataBits sets the character size.
	SetDataBits(dataBits DataBits) error

	// SetFlowControl sets the flow control mode.
	SetFlowControl(flowControl FlowControl) error

	// SetParity sets the parity mode.
	SetParity(parity Parity) error

	// SetStopBits sets the stop bit count.
	SetStopBits(stopBits StopBits) error

	// SetTimeout sets the read timeout for future Read calls.
	// A zero or negative timeout makes Read block until data arrives.
	SetTimeout(timeout time.Duration) error

	// SetRTS asserts (true) or clears (false) the RequestToSend line.
	SetRTS(level bool) error

	// SetDTR asserts (true) or clears (false) the DataTerminalReady line.
	SetDTR(level bool) error

	// ReadCTS reports whether the ClearToSend line is asserted.
	ReadCTS() (bool, error)

	// ReadDSR reports whether the DataSetReady line is asserted.
	ReadDSR() (bool, error)

	// ReadRI reports whether the RingIndicator line is asserted.
	ReadRI() (bool, error)

	// ReadCD reports whether the CarrierDetect line is asserted.
	ReadCD() (bool, error)

	// GetModemStatusBits returns the state of all input modem control
	// lines with a single native call.
	GetModemStatusBits() (*ModemStatusBits, error)

	// ResetInputBuffer discards data received but not read.
	ResetInputBuffer() error

	// ResetOutputBuffer discards data written but not yet transmitted.
	ResetOutputBuffer() error

	// BytesToRead returns the number of bytes waiting in the input buffer.
	BytesToRead() (int, error)

	// BytesToWrite returns the number of bytes waiting in the output buffer.
	BytesToWrite() (int, error)
}

// UsbInfo holds the USB metadata of an enumerated port. The string fields
// are empty when the operating system cannot supply them.
type UsbInfo struct {
	// VID is the USB vendor ID
	VID uint16
	// PID is the USB product ID
	PID uint16
	// SerialNumber is the device serial number, if any
	SerialNumber string
	// Manufacturer is the vendor string reported by the device, if any
	Manufacturer string
	// Product is the product string reported by the device, if any
	Product string
}

// PortType describes how an enumerated port is attached to the system.
type PortType int

const (
	// PortTypeUnknown means the bus could not be classified
	PortTypeUnknown PortType = iota
	// PortTypeUSB means the port hangs off a USB device
	PortTypeUSB
	// PortTypePCI means the port is a permanent PCI/PNP device
	PortTypePCI
)

// PortInfo describes a port discovered by AvailablePorts. It is a snapshot:
// it does not represent an open handle and the device may be gone by the
// time it is opened.
type PortInfo struct {
	// Name is the short platform name of the port, suitable for Open
	Name string
	// Type is the bus the port is attached through
	Type PortType
	// USB holds the USB metadata; non-nil exactly when Type is PortTypeUSB
	USB *UsbInfo
}

// Open opens the named serial port using the default settings
// (9600-8-N-1, no flow control, 1 ms read timeout).
//
// The name is platform-native: a device node path like "/dev/ttyUSB0" on
// POSIX systems, a device name like "COM3" on Windows.
func Open(name string) (Port, error) {
	return nativeOpen(name, DefaultSettings())
}

// OpenWithSettings opens the named serial port and applies the given
// settings before returning the handle. If configuration fails the native
// resource is released and only the error is returned.
func OpenWithSettings(name string, settings Settings) (Port, error) {
	return nativeOpen(name, settings)
}

// AvailablePorts returns the serial ports discovered on the system, with
// USB metadata attached where the platform can resolve it.
//
// The result is advisory: listed ports may no longer exist when opened, and
// an empty list is a valid result on a system with no serial devices. The
// order is not guaranteed to be stable across calls or platforms.
func AvailablePorts() ([]*PortInfo, error) {
	return nativeAvailablePorts()
}

// AvailableBaudRates returns an ascending, non-exhaustive list of the
// standard baud rates the platform advertises as supported. It returns an
// empty list on platforms with no known list and never fails.
func AvailableBaudRates() []uint32 {
	return nativeAvailableBaudRates()
}
