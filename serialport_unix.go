//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin

package serialport

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tewtal/serialport-rs/unixutils"
)

// unixPort implements the Port interface on termios-style systems. It owns
// a single file descriptor for its whole lifetime plus a pipe used to wake
// a Read blocked in select when the port is closed.
//
// closeLock serializes teardown against in-flight reads: Read holds the
// read side across its select so Close cannot release the descriptors
// underneath it. Close signals through the pipe first, so it never waits
// on a still-blocked select.
type unixPort struct {
	handle int
	name   string

	settings  Settings
	closePipe *unixutils.Pipe
	closeLock sync.RWMutex
	opened    atomic.Bool
}

func nativeOpen(name string, settings Settings) (Port, error) {
	h, err := unix.Open(name, unix.O_RDWR|unix.O_NOCTTY|unix.O_NDELAY, 0)
	if err != nil {
		switch err {
		case unix.EBUSY:
			return nil, portError(NoDevice, "serial port busy", err)
		case unix.EACCES:
			return nil, portError(IoError, "permission denied opening "+name, err)
		}
		return nil, classifyErrno("unable to open "+name, err)
	}

	// From here on the descriptor must be released on every failure path.
	fail := func(e error) (Port, error) {
		unix.Close(h)
		return nil, e
	}

	var st unix.Stat_t
	if err := unix.Fstat(h, &st); err != nil {
		return fail(classifyErrno("unable to stat "+name, err))
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return fail(NewPortError(InvalidInput, name+" is not a character device"))
	}

	port := &unixPort{
		handle:   h,
		name:     name,
		settings: settings,
	}

	tio, err := port.termSettings()
	if err != nil {
		return fail(portError(InvalidInput, name+" is not a serial port", err))
	}
	setRawMode(tio)
	special, err := foldTermSettings(tio, settings)
	if err != nil {
		return fail(err)
	}
	if err := port.setTermSettings(tio); err != nil {
		return fail(classifyErrno("unable to configure "+name, err))
	}
	if special {
		if err := port.setSpecialBaudrate(settings.BaudRate.Speed()); err != nil {
			return fail(err)
		}
	}

	if err := unix.SetNonblock(h, false); err != nil {
		return fail(classifyErrno("unable to configure "+name, err))
	}
	port.acquireExclusiveAccess()

	pipe, err := unixutils.NewPipe()
	if err != nil {
		return fail(classifyErrno("unable to open internal pipe", err))
	}
	port.closePipe = pipe
	port.opened.Store(true)
	return port, nil
}

// foldTermSettings applies every field of settings except the timeout to the
// given termios structure, so a single tcsetattr covers them all. It reports
// whether the baud rate needs the platform's arbitrary-rate mechanism as a
// separate call.
func foldTermSettings(tio *unix.Termios, settings Settings) (special bool, err error) {
	special, err = setTermSettingsBaudrate(settings.BaudRate, tio)
	if err != nil {
		return false, err
	}
	if err = setTermSettingsDataBits(settings.DataBits, tio); err != nil {
		return false, err
	}
	if err = setTermSettingsParity(settings.Parity, tio); err != nil {
		return false, err
	}
	if err = setTermSettingsStopBits(settings.StopBits, tio); err != nil {
		return false, err
	}
	if err = setTermSettingsFlowControl(settings.FlowControl, tio); err != nil {
		return false, err
	}
	return special, nil
}

func (port *unixPort) Close() error {
	if !port.opened.CompareAndSwap(true, false) {
		return port.errClosed()
	}

	// Wake up any Read blocked in select, then wait for it to leave before
	// the descriptors go away.
	port.closePipe.Write([]byte{0})
	port.closeLock.Lock()
	defer port.closeLock.Unlock()

	port.releaseExclusiveAccess()
	err := unix.Close(port.handle)
	port.closePipe.Close()
	if err != nil {
		return classifyErrno("error closing port", err)
	}
	return nil
}

func (port *unixPort) Name() string {
	return port.name
}

func (port *unixPort) Read(p []byte) (int, error) {
	port.closeLock.RLock()
	defer port.closeLock.RUnlock()
	if !port.opened.Load() {
		return 0, port.errClosed()
	}

	timeout := time.Duration(-1)
	if port.settings.Timeout > 0 {
		timeout = port.settings.Timeout
	}
	pipeFD := port.closePipe.ReadFD()
	fds := unixutils.NewFDSet(port.handle, pipeFD)
	res, err := unixutils.Select(fds, nil, fds, timeout)
	if err != nil {
		return 0, classifyErrno("error waiting for data", err)
	}
	if res.IsReadable(pipeFD) {
		return 0, port.errClosed()
	}
	if !res.IsReadable(port.handle) {
		return 0, errTimeout()
	}

	n, err := unix.Read(port.handle, p)
	if err != nil {
		return 0, classifyErrno("read failed", err)
	}
	if n == 0 {
		// A readable descriptor that delivers no bytes means the other
		// end hung up or the device vanished.
		return 0, portError(NoDevice, "device disconnected", io.EOF)
	}
	return n, nil
}

func (port *unixPort) Write(p []byte) (int, error) {
	if !port.opened.Load() {
		return 0, port.errClosed()
	}
	n, err := unix.Write(port.handle, p)
	if err != nil {
		return n, classifyErrno("write failed", err)
	}
	return n, nil
}

// Settings getters. Every value except the timeout is re-read from the
// device; fields the portable model cannot interpret fall back to the last
// value applied through this handle.

func (port *unixPort) Settings() Settings {
	s := port.settings
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

func (port *unixPort) BaudRate() (BaudRate, bool) {
	if !port.opened.Load() {
		return BaudRate{}, false
	}
	return port.getBaudrate()
}

func (port *unixPort) DataBits() (DataBits, bool) {
	tio, err := port.termSettings()
	if err != nil {
		return 0, false
	}
	switch tio.Cflag & termiosMask(unix.CSIZE) {
	case termiosMask(unix.CS5):
		return DataBits5, true
	case termiosMask(unix.CS6):
		return DataBits6, true
	case termiosMask(unix.CS7):
		return DataBits7, true
	case termiosMask(unix.CS8):
		return DataBits8, true
	}
	return 0, false
}

func (port *unixPort) FlowControl() (FlowControl, bool) {
	tio, err := port.termSettings()
	if err != nil {
		return 0, false
	}
	hw := tio.Cflag&termiosMask(unix.CRTSCTS) != 0
	sw := tio.Iflag&termiosMask(unix.IXON) != 0 && tio.Iflag&termiosMask(unix.IXOFF) != 0
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

func (port *unixPort) Parity() (Parity, bool) {
	tio, err := port.termSettings()
	if err != nil {
		return 0, false
	}
	if tcCMSPAR != 0 && tio.Cflag&termiosMask(tcCMSPAR) != 0 {
		// mark/space parity has no portable representation
		return 0, false
	}
	if tio.Cflag&termiosMask(unix.PARENB) == 0 {
		return NoParity, true
	}
	if tio.Cflag&termiosMask(unix.PARODD) != 0 {
		return OddParity, true
	}
	return EvenParity, true
}

func (port *unixPort) StopBits() (StopBits, bool) {
	tio, err := port.termSettings()
	if err != nil {
		return 0, false
	}
	if tio.Cflag&termiosMask(unix.CSTOPB) != 0 {
		return TwoStopBits, true
	}
	return OneStopBit, true
}

func (port *unixPort) Timeout() time.Duration {
	return port.settings.Timeout
}

// Settings setters. Each one reads the current termios state, changes only
// its own field and writes the structure back.

func (port *unixPort) SetAll(settings Settings) error {
	tio, err := port.termSettings()
	if err != nil {
		return classifyErrno("unable to read port settings", err)
	}
	special, err := foldTermSettings(tio, settings)
	if err != nil {
		return err
	}
	if err := port.setTermSettings(tio); err != nil {
		return classifyErrno("unable to configure port", err)
	}
	if special {
		if err := port.setSpecialBaudrate(settings.BaudRate.Speed()); err != nil {
			return err
		}
	}
	port.settings = settings
	return nil
}

func (port *unixPort) SetBaudRate(baudRate BaudRate) error {
	tio, err := port.termSettings()
	if err != nil {
		return classifyErrno("unable to read port settings", err)
	}
	special, err := setTermSettingsBaudrate(baudRate, tio)
	if err != nil {
		return err
	}
	if special {
		if err := port.setSpecialBaudrate(baudRate.Speed()); err != nil {
			return err
		}
	} else if err := port.setTermSettings(tio); err != nil {
		return classifyErrno("unable to set baud rate", err)
	}
	port.settings.BaudRate = baudRate
	return nil
}

func (port *unixPort) SetDataBits(dataBits DataBits) error {
	err := port.updateTermSettings(func(tio *unix.Termios) error {
		return setTermSettingsDataBits(dataBits, tio)
	})
	if err != nil {
		return err
	}
	port.settings.DataBits = dataBits
	return nil
}

func (port *unixPort) SetFlowControl(flowControl FlowControl) error {
	err := port.updateTermSettings(func(tio *unix.Termios) error {
		return setTermSettingsFlowControl(flowControl, tio)
	})
	if err != nil {
		return err
	}
	port.settings.FlowControl = flowControl
	return nil
}

func (port *unixPort) SetParity(parity Parity) error {
	err := port.updateTermSettings(func(tio *unix.Termios) error {
		return setTermSettingsParity(parity, tio)
	})
	if err != nil {
		return err
	}
	port.settings.Parity = parity
	return nil
}

func (port *unixPort) SetStopBits(stopBits StopBits) error {
	err := port.updateTermSettings(func(tio *unix.Termios) error {
		return setTermSettingsStopBits(stopBits, tio)
	})
	if err != nil {
		return err
	}
	port.settings.StopBits = stopBits
	return nil
}

func (port *unixPort) SetTimeout(timeout time.Duration) error {
	// The timeout is enforced by select, not by the device, so there is
	// no native call that can fail here.
	port.settings.Timeout = timeout
	return nil
}

// Modem control lines.

func (port *unixPort) SetRTS(level bool) error {
	return port.setModemBit(unix.TIOCM_RTS, level)
}

func (port *unixPort) SetDTR(level bool) error {
	return port.setModemBit(unix.TIOCM_DTR, level)
}

func (port *unixPort) ReadCTS() (bool, error) {
	return port.readModemBit(unix.TIOCM_CTS)
}

func (port *unixPort) ReadDSR() (bool, error) {
	return port.readModemBit(unix.TIOCM_DSR)
}

func (port *unixPort) ReadRI() (bool, error) {
	return port.readModemBit(unix.TIOCM_RI)
}

func (port *unixPort) ReadCD() (bool, error) {
	return port.readModemBit(unix.TIOCM_CD)
}

func (port *unixPort) GetModemStatusBits() (*ModemStatusBits, error) {
	status, err := port.modemBits()
	if err != nil {
		return nil, err
	}
	return &ModemStatusBits{
		CTS: status&unix.TIOCM_CTS != 0,
		DSR: status&unix.TIOCM_DSR != 0,
		RI:  status&unix.TIOCM_RI != 0,
		DCD: status&unix.TIOCM_CD != 0,
	}, nil
}

// Buffer management.

func (port *unixPort) ResetInputBuffer() error {
	if !port.opened.Load() {
		return port.errClosed()
	}
	if err := flushInput(port.handle); err != nil {
		return classifyErrno("unable to reset input buffer", err)
	}
	return nil
}

func (port *unixPort) ResetOutputBuffer() error {
	if !port.opened.Load() {
		return port.errClosed()
	}
	if err := flushOutput(port.handle); err != nil {
		return classifyErrno("unable to reset output buffer", err)
	}
	return nil
}

func (port *unixPort) BytesToRead() (int, error) {
	if !port.opened.Load() {
		return 0, port.errClosed()
	}
	n, err := unix.IoctlGetInt(port.handle, ioctlBytesToRead)
	if err != nil {
		return 0, classifyErrno("unable to query input buffer", err)
	}
	return n, nil
}

func (port *unixPort) BytesToWrite() (int, error) {
	if !port.opened.Load() {
		return 0, port.errClosed()
	}
	n, err := unix.IoctlGetInt(port.handle, unix.TIOCOUTQ)
	if err != nil {
		return 0, classifyErrno("unable to query output buffer", err)
	}
	return n, nil
}

// termios plumbing.

func (port *unixPort) termSettings() (*unix.Termios, error) {
	return unix.IoctlGetTermios(port.handle, ioctlTcgetattr)
}

func (port *unixPort) setTermSettings(tio *unix.Termios) error {
	return unix.IoctlSetTermios(port.handle, ioctlTcsetattr, tio)
}

func (port *unixPort) updateTermSettings(f func(*unix.Termios) error) error {
	tio, err := port.termSettings()
	if err != nil {
		return classifyErrno("unable to read port settings", err)
	}
	if err := f(tio); err != nil {
		return err
	}
	if err := port.setTermSettings(tio); err != nil {
		return classifyErrno("unable to configure port", err)
	}
	return nil
}

func (port *unixPort) acquireExclusiveAccess() error {
	return unix.IoctlSetInt(port.handle, unix.TIOCEXCL, 0)
}

func (port *unixPort) releaseExclusiveAccess() error {
	return unix.IoctlSetInt(port.handle, unix.TIOCNXCL, 0)
}

func (port *unixPort) modemBits() (int, error) {
	if !port.opened.Load() {
		return 0, port.errClosed()
	}
	status, err := unix.IoctlGetInt(port.handle, unix.TIOCMGET)
	if err != nil {
		return 0, classifyErrno("unable to read modem status", err)
	}
	return status, nil
}

func (port *unixPort) readModemBit(bit int) (bool, error) {
	status, err := port.modemBits()
	if err != nil {
		return false, err
	}
	return status&bit != 0, nil
}

func (port *unixPort) setModemBit(bit int, level bool) error {
	if !port.opened.Load() {
		return port.errClosed()
	}
	req := uint(unix.TIOCMBIC)
	if level {
		req = unix.TIOCMBIS
	}
	if err := unix.IoctlSetPointerInt(port.handle, req, bit); err != nil {
		return classifyErrno("unable to set modem line", err)
	}
	return nil
}

func (port *unixPort) errClosed() *PortError {
	return NewPortError(NoDevice, "port "+port.name+" is closed")
}

// setRawMode turns off every line discipline feature so the descriptor
// behaves as a transparent byte pipe. Reads block until at least one byte
// is available; the timeout is enforced by select.
func setRawMode(tio *unix.Termios) {
	tio.Cflag |= termiosMask(unix.CREAD | unix.CLOCAL)

	tio.Lflag &^= termiosMask(unix.ICANON | unix.ECHO | unix.ECHOE | unix.ECHOK |
		unix.ECHONL | unix.ECHOCTL | unix.ECHOPRT | unix.ECHOKE | unix.ISIG | unix.IEXTEN)
	tio.Iflag &^= termiosMask(unix.IXON | unix.IXOFF | unix.IXANY | unix.INPCK |
		unix.IGNPAR | unix.PARMRK | unix.ISTRIP | unix.IGNBRK | unix.BRKINT | unix.INLCR |
		unix.IGNCR | unix.ICRNL | tcIUCLC)
	tio.Oflag &^= termiosMask(unix.OPOST)

	tio.Cc[unix.VMIN] = 1
	tio.Cc[unix.VTIME] = 0
}

func setTermSettingsDataBits(bits DataBits, tio *unix.Termios) error {
	databits, ok := databitsMap[bits]
	if !ok {
		return NewPortError(InvalidInput, "invalid data bits setting")
	}
	tio.Cflag &^= termiosMask(unix.CSIZE)
	tio.Cflag |= databits
	return nil
}

func setTermSettingsParity(parity Parity, tio *unix.Termios) error {
	switch parity {
	case NoParity:
		tio.Cflag &^= termiosMask(unix.PARENB | unix.PARODD | tcCMSPAR)
		tio.Iflag &^= termiosMask(unix.INPCK)
	case OddParity:
		tio.Cflag |= termiosMask(unix.PARENB | unix.PARODD)
		tio.Cflag &^= termiosMask(tcCMSPAR)
		tio.Iflag |= termiosMask(unix.INPCK)
	case EvenParity:
		tio.Cflag &^= termiosMask(unix.PARODD | tcCMSPAR)
		tio.Cflag |= termiosMask(unix.PARENB)
		tio.Iflag |= termiosMask(unix.INPCK)
	default:
		return NewPortError(InvalidInput, "invalid parity setting")
	}
	return nil
}

func setTermSettingsStopBits(bits StopBits, tio *unix.Termios) error {
	switch bits {
	case OneStopBit:
		tio.Cflag &^= termiosMask(unix.CSTOPB)
	case TwoStopBits:
		tio.Cflag |= termiosMask(unix.CSTOPB)
	default:
		return NewPortError(InvalidInput, "invalid stop bits setting")
	}
	return nil
}

func setTermSettingsFlowControl(flow FlowControl, tio *unix.Termios) error {
	switch flow {
	case NoFlowControl:
		tio.Cflag &^= termiosMask(unix.CRTSCTS)
		tio.Iflag &^= termiosMask(unix.IXON | unix.IXOFF | unix.IXANY)
	case SoftwareFlowControl:
		tio.Cflag &^= termiosMask(unix.CRTSCTS)
		tio.Iflag |= termiosMask(unix.IXON | unix.IXOFF)
	case HardwareFlowControl:
		tio.Cflag |= termiosMask(unix.CRTSCTS)
		tio.Iflag &^= termiosMask(unix.IXON | unix.IXOFF | unix.IXANY)
	default:
		return NewPortError(InvalidInput, "invalid flow control setting")
	}
	return nil
}

// classifyErrno maps an errno-carrying native error into the portable
// taxonomy. Errors signalling a vanished device become NoDevice so callers
// can pick a reconnect policy without string matching.
func classifyErrno(description string, err error) *PortError {
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.ENOENT, unix.ENXIO, unix.ENODEV, unix.EIO:
			return portError(NoDevice, description, err)
		case unix.EINVAL, unix.ENOTTY:
			return portError(InvalidInput, description, err)
		}
	}
	return portError(IoError, description, err)
}
