//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin

// Package unixutils provides the small select/pipe plumbing the POSIX port
// implementation needs to bound blocking reads with a timeout.
package unixutils

import (
	"time"

	"github.com/creack/goselect"
)

// FDSet is a set of file descriptors suitable for a Select call.
type FDSet struct {
	set goselect.FDSet
	max int
}

// NewFDSet creates a set containing the given file descriptors.
func NewFDSet(fds ...int) *FDSet {
	s := &FDSet{max: -1}
	s.Add(fds...)
	return s
}

// Add adds the given file descriptors to the set.
func (s *FDSet) Add(fds ...int) {
	for _, fd := range fds {
		s.set.Set(uintptr(fd))
		if fd > s.max {
			s.max = fd
		}
	}
}

// FDResultSets contains the result of a Select operation.
type FDResultSets struct {
	readable  goselect.FDSet
	writeable goselect.FDSet
	errors    goselect.FDSet
}

// IsReadable tests if a file descriptor is ready to be read.
func (r *FDResultSets) IsReadable(fd int) bool {
	return r.readable.IsSet(uintptr(fd))
}

// IsWritable tests if a file descriptor is ready to be written.
func (r *FDResultSets) IsWritable(fd int) bool {
	return r.writeable.IsSet(uintptr(fd))
}

// IsError tests if a file descriptor is in error state.
func (r *FDResultSets) IsError(fd int) bool {
	return r.errors.IsSet(uintptr(fd))
}

// Select performs a select system call: descriptors in the rd set are tested
// for read-events, in the wr set for write-events and in the er set for
// error-events. It blocks until an event happens or the timeout expires; a
// negative timeout blocks indefinitely.
func Select(rd, wr, er *FDSet, timeout time.Duration) (FDResultSets, error) {
	max := -1
	res := FDResultSets{}
	if rd != nil {
		res.readable = rd.set
		max = rd.max
	}
	if wr != nil {
		res.writeable = wr.set
		if wr.max > max {
			max = wr.max
		}
	}
	if er != nil {
		res.errors = er.set
		if er.max > max {
			max = er.max
		}
	}

	err := goselect.Select(max+1, &res.readable, &res.writeable, &res.errors, timeout)
	return res, err
}
