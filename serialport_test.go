//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serialport

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStandardBaudRates(t *testing.T) {
	standard := map[uint32]BaudRate{
		110:    Baud110,
		300:    Baud300,
		600:    Baud600,
		1200:   Baud1200,
		2400:   Baud2400,
		4800:   Baud4800,
		9600:   Baud9600,
		19200:  Baud19200,
		38400:  Baud38400,
		57600:  Baud57600,
		115200: Baud115200,
	}
	for speed, rate := range standard {
		require.Equal(t, speed, rate.Speed())
		require.True(t, rate.Standard())
		require.Equal(t, rate, BaudRateFromSpeed(speed))
	}
}

func TestNonStandardBaudRates(t *testing.T) {
	r := require.New(t)

	rate := BaudOther(250000)
	r.Equal(uint32(250000), rate.Speed())
	r.False(rate.Standard())
	r.Equal(rate, BaudRateFromSpeed(250000))

	// BaudOther of a standard speed is a distinct value from the standard
	// rate, but BaudRateFromSpeed always picks the standard variant.
	r.NotEqual(Baud9600, BaudOther(9600))
	r.Equal(Baud9600, BaudRateFromSpeed(9600))
	r.Equal(uint32(9600), BaudOther(9600).Speed())
}

func TestDefaultSettings(t *testing.T) {
	r := require.New(t)
	s := DefaultSettings()
	r.Equal(Baud9600, s.BaudRate)
	r.Equal(DataBits8, s.DataBits)
	r.Equal(NoFlowControl, s.FlowControl)
	r.Equal(NoParity, s.Parity)
	r.Equal(OneStopBit, s.StopBits)
	r.Equal(time.Millisecond, s.Timeout)
}

func TestAvailableBaudRates(t *testing.T) {
	r := require.New(t)
	rates := AvailableBaudRates()
	if len(rates) == 0 {
		t.Skip("no baud rate list on this platform")
	}
	r.True(sort.SliceIsSorted(rates, func(i, j int) bool { return rates[i] < rates[j] }))
	r.Contains(rates, uint32(9600))
	r.Contains(rates, uint32(115200))
}
