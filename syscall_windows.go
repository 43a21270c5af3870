//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serialport

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// Comm API reference:
// https://learn.microsoft.com/en-us/windows/win32/devio/communications-functions

type comstat struct {
	/* typedef struct _COMSTAT {
	    DWORD fCtsHold  :1;
	    DWORD fDsrHold  :1;
	    DWORD fRlsdHold  :1;
	    DWORD fXoffHold  :1;
	    DWORD fXoffSent  :1;
	    DWORD fEof  :1;
	    DWORD fTxim  :1;
	    DWORD fReserved  :25;
	    DWORD cbInQue;
	    DWORD cbOutQue;
	} COMSTAT, *LPCOMSTAT; */
	flags  uint32
	inque  uint32
	outque uint32
}

const (
	dcbBinary                uint32 = 0x00000001
	dcbParity                       = 0x00000002
	dcbOutXCTSFlow                  = 0x00000004
	dcbOutXDSRFlow                  = 0x00000008
	dcbDTRControlDisableMask        = ^uint32(0x00000030)
	dcbDTRControlEnable             = 0x00000010
	dcbDTRControlHandshake          = 0x00000020
	dcbDSRSensitivity               = 0x00000040
	dcbTXContinueOnXOFF             = 0x00000080
	dcbOutX                         = 0x00000100
	dcbInX                          = 0x00000200
	dcbErrorChar                    = 0x00000400
	dcbNull                         = 0x00000800
	dcbRTSControlDisableMask        = ^uint32(0x00003000)
	dcbRTSControlEnable             = 0x00001000
	dcbRTSControlHandshake          = 0x00002000
	dcbRTSControlToggle             = 0x00003000
	dcbAbortOnError                 = 0x00004000
)

type dcb struct {
	DCBlength uint32
	BaudRate  uint32

	// Flags field is a bitfield
	//  fBinary            :1
	//  fParity            :1
	//  fOutxCtsFlow       :1
	//  fOutxDsrFlow       :1
	//  fDtrControl        :2
	//  fDsrSensitivity    :1
	//  fTXContinueOnXoff  :1
	//  fOutX              :1
	//  fInX               :1
	//  fErrorChar         :1
	//  fNull              :1
	//  fRtsControl        :2
	//  fAbortOnError      :1
	//  fDummy2            :17
	Flags uint32

	wReserved  uint16
	XonLim     uint16
	XoffLim    uint16
	ByteSize   byte
	Parity     byte
	StopBits   byte
	XonChar    byte
	XoffChar   byte
	ErrorChar  byte
	EOFChar    byte
	EvtChar    byte
	wReserved1 uint16
}

type commTimeouts struct {
	ReadIntervalTimeout         uint32
	ReadTotalTimeoutMultiplier  uint32
	ReadTotalTimeoutConstant    uint32
	WriteTotalTimeoutMultiplier uint32
	WriteTotalTimeoutConstant   uint32
}

const (
	commFunctionSetXOFF uint32 = iota + 1
	commFunctionSetXON
	commFunctionSetRTS
	commFunctionClrRTS
	commFunctionSetDTR
	commFunctionClrDTR
	_
	commFunctionSetBreak
	commFunctionClrBreak
)

const (
	msCTSOn  uint32 = 0x0010
	msDSROn         = 0x0020
	msRingOn        = 0x0040
	msRLSDOn        = 0x0080
)

const (
	purgeRxAbort uint32 = 0x0002
	purgeRxClear        = 0x0008
	purgeTxAbort        = 0x0001
	purgeTxClear        = 0x0004
)

var (
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procGetCommState       = kernel32.NewProc("GetCommState")
	procSetCommState       = kernel32.NewProc("SetCommState")
	procGetCommTimeouts    = kernel32.NewProc("GetCommTimeouts")
	procSetCommTimeouts    = kernel32.NewProc("SetCommTimeouts")
	procEscapeCommFunction = kernel32.NewProc("EscapeCommFunction")
	procGetCommModemStatus = kernel32.NewProc("GetCommModemStatus")
	procClearCommError     = kernel32.NewProc("ClearCommError")
	procPurgeComm          = kernel32.NewProc("PurgeComm")
)

func commCall(proc *windows.LazyProc, args ...uintptr) error {
	r1, _, errno := proc.Call(args...)
	if r1 == 0 {
		return errno
	}
	return nil
}

func getCommState(handle windows.Handle, params *dcb) error {
	return commCall(procGetCommState, uintptr(handle), uintptr(unsafe.Pointer(params)))
}

func setCommState(handle windows.Handle, params *dcb) error {
	return commCall(procSetCommState, uintptr(handle), uintptr(unsafe.Pointer(params)))
}

func getCommTimeouts(handle windows.Handle, timeouts *commTimeouts) error {
	return commCall(procGetCommTimeouts, uintptr(handle), uintptr(unsafe.Pointer(timeouts)))
}

func setCommTimeouts(handle windows.Handle, timeouts *commTimeouts) error {
	return commCall(procSetCommTimeouts, uintptr(handle), uintptr(unsafe.Pointer(timeouts)))
}

func escapeCommFunction(handle windows.Handle, function uint32) error {
	return commCall(procEscapeCommFunction, uintptr(handle), uintptr(function))
}

func getCommModemStatus(handle windows.Handle, bits *uint32) error {
	return commCall(procGetCommModemStatus, uintptr(handle), uintptr(unsafe.Pointer(bits)))
}

func clearCommError(handle windows.Handle, lpErrors *uint32, lpStat *comstat) error {
	return commCall(procClearCommError, uintptr(handle),
		uintptr(unsafe.Pointer(lpErrors)), uintptr(unsafe.Pointer(lpStat)))
}

func purgeComm(handle windows.Handle, flags uint32) error {
	return commCall(procPurgeComm, uintptr(handle), uintptr(flags))
}
