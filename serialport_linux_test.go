//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serialport

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	ttyPath     = "/tmp/faketty"
	ttyPeerPath = "/tmp/faketty-peer"
)

type ttyProc struct {
	t   *testing.T
	cmd *exec.Cmd
}

func (tp *ttyProc) Close() error {
	err := tp.cmd.Process.Signal(os.Interrupt)
	require.NoError(tp.t, err)
	return tp.cmd.Wait()
}

func (tp *ttyProc) waitForPort(path string) {
	for {
		_, err := os.Stat(path)
		if err == nil {
			return
		}
		if !errors.Is(err, os.ErrNotExist) {
			require.NoError(tp.t, err)
		}
		time.Sleep(time.Millisecond)
	}
}

// startSocatPair creates two linked pseudo terminals: what is written to one
// end can be read from the other.
func startSocatPair(t *testing.T, ctx context.Context) *ttyProc {
	socatPath, err := exec.LookPath("socat")
	if err != nil {
		t.Skip("socat not available, skipping pseudo-terminal tests")
	}
	cmd := exec.CommandContext(ctx, socatPath,
		"pty,link="+ttyPath, "pty,link="+ttyPeerPath)
	require.NoError(t, cmd.Start())
	socat := &ttyProc{
		t:   t,
		cmd: cmd,
	}
	socat.waitForPort(ttyPath)
	socat.waitForPort(ttyPeerPath)
	return socat
}

func TestOpenWithDefaultSettings(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	socat := startSocatPair(t, ctx)
	defer socat.Close()

	port, err := Open(ttyPath)
	require.NoError(t, err)
	defer port.Close()

	require.Equal(t, ttyPath, port.Name())
	require.Equal(t, time.Millisecond, port.Timeout())

	if v, ok := port.DataBits(); ok {
		require.Equal(t, DataBits8, v)
	}
	if v, ok := port.Parity(); ok {
		require.Equal(t, NoParity, v)
	}
	if v, ok := port.StopBits(); ok {
		require.Equal(t, OneStopBit, v)
	}
	if v, ok := port.FlowControl(); ok {
		require.Equal(t, NoFlowControl, v)
	}
}

func TestOpenNonexistentPort(t *testing.T) {
	_, err := Open("/dev/nonexistent-serial-port")
	require.Error(t, err)

	var portErr *PortError
	require.ErrorAs(t, err, &portErr)
	require.Equal(t, NoDevice, portErr.Kind())
	require.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestOpenRegularFileFails(t *testing.T) {
	f, err := os.CreateTemp("", "not-a-tty-*")
	require.NoError(t, err)
	f.Close()
	defer os.Remove(f.Name())

	_, err = Open(f.Name())
	require.Error(t, err)

	var portErr *PortError
	require.ErrorAs(t, err, &portErr)
	require.Equal(t, InvalidInput, portErr.Kind())
}

func TestSetBaudRateRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	socat := startSocatPair(t, ctx)
	defer socat.Close()

	port, err := Open(ttyPath)
	require.NoError(t, err)
	defer port.Close()

	require.NoError(t, port.SetBaudRate(Baud115200))
	rate, ok := port.BaudRate()
	require.True(t, ok)
	require.Equal(t, Baud115200, rate)
	require.Equal(t, Baud115200, port.Settings().BaudRate)
}

func TestSetAllAppliesEveryField(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	socat := startSocatPair(t, ctx)
	defer socat.Close()

	port, err := Open(ttyPath)
	require.NoError(t, err)
	defer port.Close()

	settings := Settings{
		BaudRate:    Baud19200,
		DataBits:    DataBits7,
		FlowControl: SoftwareFlowControl,
		Parity:      EvenParity,
		StopBits:    TwoStopBits,
		Timeout:     100 * time.Millisecond,
	}
	require.NoError(t, port.SetAll(settings))

	got := port.Settings()
	require.Equal(t, settings, got)
}

func TestSettersAreIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	socat := startSocatPair(t, ctx)
	defer socat.Close()

	port, err := Open(ttyPath)
	require.NoError(t, err)
	defer port.Close()

	for i := 0; i < 2; i++ {
		require.NoError(t, port.SetParity(EvenParity))
		require.NoError(t, port.SetStopBits(TwoStopBits))
	}
	parity, ok := port.Parity()
	require.True(t, ok)
	require.Equal(t, EvenParity, parity)
	stopBits, ok := port.StopBits()
	require.True(t, ok)
	require.Equal(t, TwoStopBits, stopBits)
}

func TestInvalidSettingsAreRejected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	socat := startSocatPair(t, ctx)
	defer socat.Close()

	port, err := Open(ttyPath)
	require.NoError(t, err)
	defer port.Close()

	var portErr *PortError

	err = port.SetBaudRate(BaudOther(0))
	require.ErrorAs(t, err, &portErr)
	require.Equal(t, InvalidInput, portErr.Kind())

	err = port.SetDataBits(DataBits(9))
	require.ErrorAs(t, err, &portErr)
	require.Equal(t, InvalidInput, portErr.Kind())

	// A failed setter leaves the previous configuration untouched.
	if v, ok := port.DataBits(); ok {
		require.Equal(t, DataBits8, v)
	}
}

func TestWriteIsReadableFromPeer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	socat := startSocatPair(t, ctx)
	defer socat.Close()

	port, err := Open(ttyPath)
	require.NoError(t, err)
	defer port.Close()

	settings := DefaultSettings()
	settings.Timeout = time.Second
	peer, err := OpenWithSettings(ttyPeerPath, settings)
	require.NoError(t, err)
	defer peer.Close()

	msg := []byte("10,20,30\n")
	n, err := port.Write(msg)
	require.NoError(t, err)
	require.Equal(t, len(msg), n)

	buf := make([]byte, 100)
	n, err = peer.Read(buf)
	require.NoError(t, err)
	require.Equal(t, string(msg[:n]), string(buf[:n]))
}

func TestReadTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	socat := startSocatPair(t, ctx)
	defer socat.Close()

	settings := DefaultSettings()
	settings.Timeout = 50 * time.Millisecond
	port, err := OpenWithSettings(ttyPath, settings)
	require.NoError(t, err)
	defer port.Close()

	start := time.Now()
	buf := make([]byte, 100)
	n, err := port.Read(buf)
	elapsed := time.Since(start)

	require.Equal(t, 0, n)
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrDeadlineExceeded))
	var portErr *PortError
	require.ErrorAs(t, err, &portErr)
	require.True(t, portErr.Timeout())
	require.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestReadAndCloseConcurrency(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	socat := startSocatPair(t, ctx)
	defer socat.Close()

	settings := DefaultSettings()
	settings.Timeout = 0 // block forever
	port, err := OpenWithSettings(ttyPath, settings)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 100)
		port.Read(buf)
		close(done)
	}()
	// let port.Read start
	time.Sleep(time.Millisecond)
	require.NoError(t, port.Close())

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "expected Close to wake the blocked Read")
	}
}

func TestCloseWhileReadingRepeatedly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	socat := startSocatPair(t, ctx)
	defer socat.Close()

	settings := DefaultSettings()
	settings.Timeout = 0 // block forever

	for i := 0; i < 20; i++ {
		port, err := OpenWithSettings(ttyPath, settings)
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			_, err := port.Read(make([]byte, 100))
			done <- err
		}()
		time.Sleep(time.Millisecond)
		require.NoError(t, port.Close())

		select {
		case readErr := <-done:
			var portErr *PortError
			require.ErrorAs(t, readErr, &portErr)
			require.Equal(t, NoDevice, portErr.Kind())
		case <-time.After(time.Second):
			require.Fail(t, "expected Close to wake the blocked Read")
		}
	}
}

func TestDoubleCloseFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	socat := startSocatPair(t, ctx)
	defer socat.Close()

	port, err := Open(ttyPath)
	require.NoError(t, err)
	require.NoError(t, port.Close())

	err = port.Close()
	var portErr *PortError
	require.ErrorAs(t, err, &portErr)
	require.Equal(t, NoDevice, portErr.Kind())
}

func TestResetInputBuffer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	socat := startSocatPair(t, ctx)
	defer socat.Close()

	port, err := Open(ttyPath)
	require.NoError(t, err)
	defer port.Close()

	peer, err := Open(ttyPeerPath)
	require.NoError(t, err)
	defer peer.Close()

	_, err = port.Write([]byte("discard me"))
	require.NoError(t, err)

	// Give the kernel a moment to move the bytes to the peer side.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, peer.ResetInputBuffer())
	n, err := peer.BytesToRead()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestBytesToRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	socat := startSocatPair(t, ctx)
	defer socat.Close()

	port, err := Open(ttyPath)
	require.NoError(t, err)
	defer port.Close()

	peer, err := Open(ttyPeerPath)
	require.NoError(t, err)
	defer peer.Close()

	msg := []byte("pending")
	_, err = port.Write(msg)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := peer.BytesToRead()
		return err == nil && n == len(msg)
	}, time.Second, 10*time.Millisecond)
}
