//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serialport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeSysfs builds a sysfs-like tree:
//
//	<root>/class/tty/<tty>/device -> <devicePath>/<iface>/<tty>
//	<root>/devices/... holds the USB attribute files
type fakeSysfs struct {
	t    *testing.T
	root string
}

func newFakeSysfs(t *testing.T) *fakeSysfs {
	return &fakeSysfs{t: t, root: t.TempDir()}
}

func (fs *fakeSysfs) addUSBSerial(tty, bus string, attrs map[string]string) {
	devicePath := filepath.Join(fs.root, "devices", "usb5", "5-2.3.1")
	ifacePath := filepath.Join(devicePath, "5-2.3.1:1.0")
	ttyPath := filepath.Join(ifacePath, tty)
	require.NoError(fs.t, os.MkdirAll(ttyPath, 0755))

	for name, content := range attrs {
		path := filepath.Join(devicePath, name)
		require.NoError(fs.t, os.WriteFile(path, []byte(content+"\n"), 0644))
	}

	busDir := filepath.Join(fs.root, "bus", bus)
	require.NoError(fs.t, os.MkdirAll(busDir, 0755))
	require.NoError(fs.t, os.Symlink(busDir, filepath.Join(devicePath, "subsystem")))

	classDir := filepath.Join(fs.root, "class", "tty", tty)
	require.NoError(fs.t, os.MkdirAll(classDir, 0755))
	require.NoError(fs.t, os.Symlink(ttyPath, filepath.Join(classDir, "device")))
}

func (fs *fakeSysfs) addVirtualTTY(tty string) {
	// Consoles and pseudo terminals have no "device" link.
	classDir := filepath.Join(fs.root, "class", "tty", tty)
	require.NoError(fs.t, os.MkdirAll(classDir, 0755))
}

func TestEnumerateSysfsUSBDevice(t *testing.T) {
	r := require.New(t)
	sysfs := newFakeSysfs(t)
	sysfs.addUSBSerial("ttyUSB0", "usb", map[string]string{
		"idVendor":     "0403",
		"idProduct":    "6010",
		"serial":       "FT123456",
		"manufacturer": "FTDI",
		"product":      "FT2232C Dual USB-UART",
	})

	ports, err := enumerateSysfs(sysfs.root)
	r.NoError(err)
	r.Len(ports, 1)

	port := ports[0]
	r.Equal("/dev/ttyUSB0", port.Name)
	r.Equal(PortTypeUSB, port.Type)
	r.NotNil(port.USB)
	r.Equal(uint16(0x0403), port.USB.VID)
	r.Equal(uint16(0x6010), port.USB.PID)
	r.Equal("FT123456", port.USB.SerialNumber)
	r.Equal("FTDI", port.USB.Manufacturer)
	r.Equal("FT2232C Dual USB-UART", port.USB.Product)
}

func TestEnumerateSysfsMissingAttributes(t *testing.T) {
	r := require.New(t)
	sysfs := newFakeSysfs(t)
	// Only the numeric identification, no descriptor strings.
	sysfs.addUSBSerial("ttyACM0", "usb", map[string]string{
		"idVendor":  "2341",
		"idProduct": "0043",
	})

	ports, err := enumerateSysfs(sysfs.root)
	r.NoError(err)
	r.Len(ports, 1)
	r.Equal(PortTypeUSB, ports[0].Type)
	r.Equal(uint16(0x2341), ports[0].USB.VID)
	r.Empty(ports[0].USB.SerialNumber)
	r.Empty(ports[0].USB.Manufacturer)
	r.Empty(ports[0].USB.Product)
}

func TestEnumerateSysfsSkipsVirtualTTYs(t *testing.T) {
	r := require.New(t)
	sysfs := newFakeSysfs(t)
	sysfs.addVirtualTTY("tty0")
	sysfs.addVirtualTTY("console")
	sysfs.addUSBSerial("ttyUSB0", "usb", map[string]string{
		"idVendor":  "0403",
		"idProduct": "6001",
	})

	ports, err := enumerateSysfs(sysfs.root)
	r.NoError(err)
	r.Len(ports, 1)
	r.Equal("/dev/ttyUSB0", ports[0].Name)
}

func TestEnumerateSysfsNaturalOrder(t *testing.T) {
	r := require.New(t)
	sysfs := newFakeSysfs(t)
	for _, tty := range []string{"ttyUSB10", "ttyUSB2", "ttyUSB1"} {
		classDir := filepath.Join(sysfs.root, "class", "tty", tty)
		target := filepath.Join(sysfs.root, "devices", "plat", tty)
		r.NoError(os.MkdirAll(classDir, 0755))
		r.NoError(os.MkdirAll(target, 0755))
		r.NoError(os.Symlink(target, filepath.Join(classDir, "device")))
	}

	ports, err := enumerateSysfs(sysfs.root)
	r.NoError(err)
	r.Len(ports, 3)
	r.Equal("/dev/ttyUSB1", ports[0].Name)
	r.Equal("/dev/ttyUSB2", ports[1].Name)
	r.Equal("/dev/ttyUSB10", ports[2].Name)
}

func TestEnumerateSysfsEmpty(t *testing.T) {
	r := require.New(t)
	sysfs := newFakeSysfs(t)
	r.NoError(os.MkdirAll(filepath.Join(sysfs.root, "class", "tty"), 0755))

	ports, err := enumerateSysfs(sysfs.root)
	r.NoError(err)
	r.Empty(ports)
}

func TestEnumerateSysfsMissingRoot(t *testing.T) {
	r := require.New(t)
	_, err := enumerateSysfs(filepath.Join(t.TempDir(), "nope"))
	var portErr *PortError
	r.ErrorAs(err, &portErr)
	r.Equal(Unknown, portErr.Kind())
}
