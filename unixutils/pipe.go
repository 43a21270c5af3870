//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin

package unixutils

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Pipe represents a unix pipe. Its read side can be added to a Select set
// to wake a blocked call from another goroutine.
type Pipe struct {
	opened bool
	rd     int
	wr     int
}

// ErrPipeClosed is returned when operating on a pipe that is not open.
var ErrPipeClosed = errors.New("pipe not opened")

// NewPipe creates a new open pipe.
func NewPipe() (*Pipe, error) {
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		return nil, err
	}
	return &Pipe{rd: fds[0], wr: fds[1], opened: true}, nil
}

// ReadFD returns the file descriptor of the read side of the pipe,
// or -1 if the pipe is closed.
func (p *Pipe) ReadFD() int {
	if !p.opened {
		return -1
	}
	return p.rd
}

// WriteFD returns the file descriptor of the write side of the pipe,
// or -1 if the pipe is closed.
func (p *Pipe) WriteFD() int {
	if !p.opened {
		return -1
	}
	return p.wr
}

// Write writes data to the pipe and returns the number of bytes written.
func (p *Pipe) Write(data []byte) (int, error) {
	if !p.opened {
		return 0, ErrPipeClosed
	}
	return unix.Write(p.wr, data)
}

// Read reads from the pipe into data and returns the number of bytes read.
func (p *Pipe) Read(data []byte) (int, error) {
	if !p.opened {
		return 0, ErrPipeClosed
	}
	return unix.Read(p.rd, data)
}

// Close closes both sides of the pipe.
func (p *Pipe) Close() error {
	if !p.opened {
		return ErrPipeClosed
	}
	err1 := unix.Close(p.rd)
	err2 := unix.Close(p.wr)
	p.opened = false
	if err1 != nil {
		return err1
	}
	return err2
}
