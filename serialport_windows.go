//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serialport

// MSDN article on Serial Communications:
// http://msdn.microsoft.com/en-us/library/ff802693.aspx

import (
	"errors"
	"syscall"
	"time"

	"golang.org/x/sys/windows"
)

// windowsPort implements the Port interface through the Win32 comm API. It
// owns a single file handle for its whole lifetime.
type windowsPort struct {
	handle windows.Handle
	name   string

	timeout time.Duration
	opened  bool
}

// Read timeouts are enforced by the driver through COMMTIMEOUTS. The
// blocking sentinel is MAXDWORD-1 because a constant of MAXDWORD combined
// with the MAXDWORD interval/multiplier pair has a special meaning.
const (
	commTimeoutMaxDword = 0xFFFFFFFF
	commTimeoutBlocking = 0xFFFFFFFE
)

func nativeOpen(name string, settings Settings) (Port, error) {
	path, err := windows.UTF16PtrFromString("\\\\.\\" + name)
	if err != nil {
		return nil, NewPortError(InvalidInput, "invalid port name "+name)
	}
	handle, err := windows.CreateFile(
		path,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0, nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0)
	if err != nil {
		switch {
		case errors.Is(err, windows.ERROR_ACCESS_DENIED):
			return nil, portError(NoDevice, "serial port busy", err)
		case errors.Is(err, windows.ERROR_FILE_NOT_FOUND),
			errors.Is(err, windows.ERROR_PATH_NOT_FOUND):
			return nil, portError(NoDevice, "serial port not found: "+name, err)
		}
		return nil, classifyNativeError("unable to open "+name, err)
	}

	// From here on the handle must be released on every failure path.
	fail := func(e error) (Port, error) {
		windows.CloseHandle(handle)
		return nil, e
	}

	port := &windowsPort{
		handle: handle,
		name:   name,
	}

	params := &dcb{}
	if err := getCommState(handle, params); err != nil {
		return fail(portError(InvalidInput, name+" is not a serial port", err))
	}
	if err := foldCommSettings(params, settings); err != nil {
		return fail(err)
	}
	if err := setCommState(handle, params); err != nil {
		return fail(classifyNativeError("unable to configure "+name, err))
	}

	if err := port.applyTimeout(settings.Timeout); err != nil {
		return fail(err)
	}

	port.opened = true
	return port, nil
}

// foldCommSettings applies every field of settings except the timeout to the
// given DCB, so a single SetCommState covers them all. It also forces the
// line discipline style behavior off: binary mode, no error replacement, no
// DSR sensitivity.
func foldCommSettings(params *dcb, settings Settings) error {
	if settings.BaudRate.Speed() == 0 {
		return NewPortError(InvalidInput, "invalid baud rate 0")
	}
	params.BaudRate = settings.BaudRate.Speed()

	switch settings.DataBits {
	case DataBits5, DataBits6, DataBits7, DataBits8:
		params.ByteSize = byte(settings.DataBits)
	default:
		return NewPortError(InvalidInput, "invalid data bits setting")
	}

	params.Flags |= dcbBinary
	params.Flags &^= dcbErrorChar
	params.Flags &^= dcbNull
	params.Flags &^= dcbAbortOnError
	params.Flags &^= dcbDSRSensitivity
	params.Flags &^= dcbOutXDSRFlow
	params.Flags |= dcbTXContinueOnXOFF
	params.Flags &= dcbDTRControlDisableMask
	params.Flags |= dcbDTRControlEnable

	switch settings.Parity {
	case NoParity:
		params.Parity = 0
		params.Flags &^= dcbParity
	case OddParity:
		params.Parity = 1
		params.Flags |= dcbParity
	case EvenParity:
		params.Parity = 2
		params.Flags |= dcbParity
	default:
		return NewPortError(InvalidInput, "invalid parity setting")
	}

	switch settings.StopBits {
	case OneStopBit:
		params.StopBits = 0
	case TwoStopBits:
		params.StopBits = 2
	default:
		return NewPortError(InvalidInput, "invalid stop bits setting")
	}

	params.Flags &= dcbRTSControlDisableMask
	params.Flags &^= dcbOutXCTSFlow
	params.Flags &^= dcbOutX
	params.Flags &^= dcbInX
	switch settings.FlowControl {
	case NoFlowControl:
		params.Flags |= dcbRTSControlEnable
	case SoftwareFlowControl:
		params.Flags |= dcbRTSControlEnable
		params.Flags |= dcbOutX
		params.Flags |= dcbInX
	case HardwareFlowControl:
		params.Flags |= dcbRTSControlHandshake
		params.Flags |= dcbOutXCTSFlow
	default:
		return NewPortError(InvalidInput, "invalid flow control setting")
	}
	params.XonLim = 2048
	params.XoffLim = 512
	params.XonChar = 17  // DC1
	params.XoffChar = 19 // DC3

	return nil
}

func (port *windowsPort) Close() error {
	if !port.opened {
		return port.errClosed()
	}
	port.opened = false
	if err := windows.CloseHandle(port.handle); err != nil {
		return classifyNativeError("error closing port", err)
	}
	return nil
}

func (port *windowsPort) Name() string {
	return port.name
}

func (port *windowsPort) Read(p []byte) (int, error) {
	if !port.opened {
		return 0, port.errClosed()
	}
	if len(p) == 0 {
		return 0, nil
	}
	var n uint32
	if err := windows.ReadFile(port.handle, p, &n, nil); err != nil {
		return int(n), classifyNativeError("read failed", err)
	}
	if n == 0 {
		// With the MAXDWORD interval/multiplier pair a zero-byte return
		// means the total timeout expired with no data available.
		return 0, errTimeout()
	}
	return int(n), nil
}

func (port *windowsPort) Write(p []byte) (int, error) {
	if !port.opened {
		return 0, port.errClosed()
	}
	var n uint32
	if err := windows.WriteFile(port.handle, p, &n, nil); err != nil {
		return int(n), classifyNativeError("write failed", err)
	}
	return int(n), nil
}

// Settings getters. Every value except the timeout is re-read from the
// device; fields the portable model cannot interpret fall back to the
// zero value with ok == false.

func (port *windowsPort) Settings() Settings {
	s := Settings{Timeout: port.Timeout()}
	if v, ok := port.BaudRate(); ok {
		s.BaudRate = v
	}
	if v, ok := port.DataBits(); ok {
		s.DataBits = v
	}
	if v, ok := port.FlowControl(); ok {
		s.FlowControl = v
	}
	if v, ok := port.Parity(); ok {
		s.Parity = v
	}
	if v, ok := port.StopBits(); ok {
		s.StopBits = v
	}
	return s
}

func (port *windowsPort) commSettings() (*dcb, error) {
	if !port.opened {
		return nil, port.errClosed()
	}
	params := &dcb{}
	if err := getCommState(port.handle, params); err != nil {
		return nil, classifyNativeError("unable to read port settings", err)
	}
	return params, nil
}

func (port *windowsPort) BaudRate() (BaudRate, bool) {
	params, err := port.commSettings()
	if err != nil || params.BaudRate == 0 {
		return BaudRate{}, false
	}
	return BaudRateFromSpeed(params.BaudRate), true
}

func (port *windowsPort) DataBits() (DataBits, bool) {
	params, err := port.commSettings()
	if err != nil {
		return 0, false
	}
	switch params.ByteSize {
	case 5, 6, 7, 8:
		return DataBits(params.ByteSize), true
	}
	return 0, false
}

func (port *windowsPort) FlowControl() (FlowControl, bool) {
	params, err := port.commSettings()
	if err != nil {
		return 0, false
	}
	hw := params.Flags&dcbOutXCTSFlow != 0 &&
		params.Flags&^dcbRTSControlDisableMask == dcbRTSControlHandshake
	sw := params.Flags&dcbOutX != 0 && params.Flags&dcbInX != 0
	switch {
	case hw && !sw:
		return HardwareFlowControl, true
	case sw && !hw:
		return SoftwareFlowControl, true
	case !hw && !sw:
		return NoFlowControl, true
	}
	return 0, false
}

func (port *windowsPort) Parity() (Parity, bool) {
	params, err := port.commSettings()
	if err != nil {
		return 0, false
	}
	switch params.Parity {
	case 0:
		return NoParity, true
	case 1:
		return OddParity, true
	case 2:
		return EvenParity, true
	}
	// mark/space parity has no portable representation
	return 0, false
}

func (port *windowsPort) StopBits() (StopBits, bool) {
	params, err := port.commSettings()
	if err != nil {
		return 0, false
	}
	switch params.StopBits {
	case 0:
		return OneStopBit, true
	case 2:
		return TwoStopBits, true
	}
	// 1.5 stop bits has no portable representation
	return 0, false
}

func (port *windowsPort) Timeout() time.Duration {
	timeouts := &commTimeouts{}
	if port.opened && getCommTimeouts(port.handle, timeouts) == nil {
		switch timeouts.ReadTotalTimeoutConstant {
		case commTimeoutBlocking:
			return 0
		default:
			return time.Duration(timeouts.ReadTotalTimeoutConstant) * time.Millisecond
		}
	}
	return port.timeout
}

// Settings setters. Each one reads the current DCB, changes only its own
// field and writes the structure back.

func (port *windowsPort) SetAll(settings Settings) error {
	params, err := port.commSettings()
	if err != nil {
		return err
	}
	if err := foldCommSettings(params, settings); err != nil {
		return err
	}
	if err := setCommState(port.handle, params); err != nil {
		return classifyNativeError("unable to configure port", err)
	}
	return port.applyTimeout(settings.Timeout)
}

func (port *windowsPort) SetBaudRate(baudRate BaudRate) error {
	return port.updateCommSettings(func(params *dcb) error {
		if baudRate.Speed() == 0 {
			return NewPortError(InvalidInput, "invalid baud rate 0")
		}
		params.BaudRate = baudRate.Speed()
		return nil
	})
}

func (port *windowsPort) SetDataBits(dataBits DataBits) error {
	return port.updateCommSettings(func(params *dcb) error {
		switch dataBits {
		case DataBits5, DataBits6, DataBits7, DataBits8:
			params.ByteSize = byte(dataBits)
			return nil
		}
		return NewPortError(InvalidInput, "invalid data bits setting")
	})
}

func (port *windowsPort) SetFlowControl(flowControl FlowControl) error {
	return port.updateCommSettings(func(params *dcb) error {
		params.Flags &= dcbRTSControlDisableMask
		params.Flags &^= dcbOutXCTSFlow
		params.Flags &^= dcbOutX
		params.Flags &^= dcbInX
		switch flowControl {
		case NoFlowControl:
			params.Flags |= dcbRTSControlEnable
		case SoftwareFlowControl:
			params.Flags |= dcbRTSControlEnable
			params.Flags |= dcbOutX
			params.Flags |= dcbInX
		case HardwareFlowControl:
			params.Flags |= dcbRTSControlHandshake
			params.Flags |= dcbOutXCTSFlow
		default:
			return NewPortError(InvalidInput, "invalid flow control setting")
		}
		return nil
	})
}

func (port *windowsPort) SetParity(parity Parity) error {
	return port.updateCommSettings(func(params *dcb) error {
		switch parity {
		case NoParity:
			params.Parity = 0
			params.Flags &^= dcbParity
		case OddParity:
			params.Parity = 1
			params.Flags |= dcbParity
		case EvenParity:
			params.Parity = 2
			params.Flags |= dcbParity
		default:
			return NewPortError(InvalidInput, "invalid parity setting")
		}
		return nil
	})
}

func (port *windowsPort) SetStopBits(stopBits StopBits) error {
	return port.updateCommSettings(func(params *dcb) error {
		switch stopBits {
		case OneStopBit:
			params.StopBits = 0
		case TwoStopBits:
			params.StopBits = 2
		default:
			return NewPortError(InvalidInput, "invalid stop bits setting")
		}
		return nil
	})
}

func (port *windowsPort) SetTimeout(timeout time.Duration) error {
	if !port.opened {
		return port.errClosed()
	}
	return port.applyTimeout(timeout)
}

// applyTimeout installs a COMMTIMEOUTS configuration where ReadFile returns
// as soon as at least one byte is available and gives up after the given
// total time otherwise. A zero or negative timeout blocks until data
// arrives.
func (port *windowsPort) applyTimeout(timeout time.Duration) error {
	timeouts := &commTimeouts{
		ReadIntervalTimeout:        commTimeoutMaxDword,
		ReadTotalTimeoutMultiplier: commTimeoutMaxDword,
		ReadTotalTimeoutConstant:   timeoutConstant(timeout),
	}
	if err := setCommTimeouts(port.handle, timeouts); err != nil {
		return classifyNativeError("unable to set read timeout", err)
	}
	port.timeout = timeout
	return nil
}

// timeoutConstant maps a read timeout onto the ReadTotalTimeoutConstant
// field: the blocking sentinel for zero or negative values, a clamped
// millisecond count otherwise.
func timeoutConstant(timeout time.Duration) uint32 {
	if timeout <= 0 {
		return commTimeoutBlocking
	}
	ms := timeout.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if ms > commTimeoutBlocking-1 {
		ms = commTimeoutBlocking - 1
	}
	return uint32(ms)
}

func (port *windowsPort) updateCommSettings(f func(*dcb) error) error {
	params, err := port.commSettings()
	if err != nil {
		return err
	}
	if err := f(params); err != nil {
		return err
	}
	if err := setCommState(port.handle, params); err != nil {
		return classifyNativeError("unable to configure port", err)
	}
	return nil
}

// Modem control lines.

func (port *windowsPort) SetRTS(level bool) error {
	function := commFunctionClrRTS
	if level {
		function = commFunctionSetRTS
	}
	return port.escape(function)
}

func (port *windowsPort) SetDTR(level bool) error {
	function := commFunctionClrDTR
	if level {
		function = commFunctionSetDTR
	}
	return port.escape(function)
}

func (port *windowsPort) escape(function uint32) error {
	if !port.opened {
		return port.errClosed()
	}
	if err := escapeCommFunction(port.handle, function); err != nil {
		return classifyNativeError("unable to set modem line", err)
	}
	return nil
}

func (port *windowsPort) ReadCTS() (bool, error) {
	return port.readModemBit(msCTSOn)
}

func (port *windowsPort) ReadDSR() (bool, error) {
	return port.readModemBit(msDSROn)
}

func (port *windowsPort) ReadRI() (bool, error) {
	return port.readModemBit(msRingOn)
}

func (port *windowsPort) ReadCD() (bool, error) {
	return port.readModemBit(msRLSDOn)
}

func (port *windowsPort) GetModemStatusBits() (*ModemStatusBits, error) {
	status, err := port.modemBits()
	if err != nil {
		return nil, err
	}
	return &ModemStatusBits{
		CTS: status&msCTSOn != 0,
		DSR: status&msDSROn != 0,
		RI:  status&msRingOn != 0,
		DCD: status&msRLSDOn != 0,
	}, nil
}

func (port *windowsPort) modemBits() (uint32, error) {
	if !port.opened {
		return 0, port.errClosed()
	}
	var status uint32
	if err := getCommModemStatus(port.handle, &status); err != nil {
		return 0, classifyNativeError("unable to read modem status", err)
	}
	return status, nil
}

func (port *windowsPort) readModemBit(bit uint32) (bool, error) {
	status, err := port.modemBits()
	if err != nil {
		return false, err
	}
	return status&bit != 0, nil
}

// Buffer management.

func (port *windowsPort) ResetInputBuffer() error {
	if !port.opened {
		return port.errClosed()
	}
	if err := purgeComm(port.handle, purgeRxAbort|purgeRxClear); err != nil {
		return classifyNativeError("unable to reset input buffer", err)
	}
	return nil
}

func (port *windowsPort) ResetOutputBuffer() error {
	if !port.opened {
		return port.errClosed()
	}
	if err := purgeComm(port.handle, purgeTxAbort|purgeTxClear); err != nil {
		return classifyNativeError("unable to reset output buffer", err)
	}
	return nil
}

func (port *windowsPort) queueSizes() (*comstat, error) {
	if !port.opened {
		return nil, port.errClosed()
	}
	var commErrors uint32
	stat := &comstat{}
	if err := clearCommError(port.handle, &commErrors, stat); err != nil {
		return nil, classifyNativeError("unable to query port buffers", err)
	}
	return stat, nil
}

func (port *windowsPort) BytesToRead() (int, error) {
	stat, err := port.queueSizes()
	if err != nil {
		return 0, err
	}
	return int(stat.inque), nil
}

func (port *windowsPort) BytesToWrite() (int, error) {
	stat, err := port.queueSizes()
	if err != nil {
		return 0, err
	}
	return int(stat.outque), nil
}

func (port *windowsPort) errClosed() *PortError {
	return NewPortError(NoDevice, "port "+port.name+" is closed")
}

// classifyNativeError maps a Win32 error into the portable taxonomy. Errors
// signalling a vanished device become NoDevice so callers can pick a
// reconnect policy without string matching.
func classifyNativeError(description string, err error) *PortError {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case windows.ERROR_FILE_NOT_FOUND, windows.ERROR_PATH_NOT_FOUND,
			windows.ERROR_DEVICE_NOT_CONNECTED, windows.ERROR_OPERATION_ABORTED:
			return portError(NoDevice, description, err)
		case windows.ERROR_INVALID_PARAMETER:
			return portError(InvalidInput, description, err)
		}
	}
	return portError(IoError, description, err)
}
