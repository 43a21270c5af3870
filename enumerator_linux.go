//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serialport

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fvbommel/sortorder"
)

func nativeAvailablePorts() ([]*PortInfo, error) {
	return enumerateSysfs("/sys")
}

// enumerateSysfs walks <root>/class/tty and keeps the entries that are
// backed by real hardware: kernel consoles and pseudo terminals have no
// "device" link and are skipped.
func enumerateSysfs(root string) ([]*PortInfo, error) {
	ttyDir := filepath.Join(root, "class", "tty")
	entries, err := os.ReadDir(ttyDir)
	if err != nil {
		return nil, portError(Unknown, "unable to enumerate serial ports", err)
	}

	var ports []*PortInfo
	for _, entry := range entries {
		devLink := filepath.Join(ttyDir, entry.Name(), "device")
		devPath, err := filepath.EvalSymlinks(devLink)
		if err != nil {
			continue
		}
		info := &PortInfo{
			Name: "/dev/" + entry.Name(),
			Type: classifySysfsDevice(devPath),
		}
		if info.Type == PortTypeUSB {
			info.USB = readSysfsUsbInfo(devPath)
			if info.USB == nil {
				info.Type = PortTypeUnknown
			}
		}
		ports = append(ports, info)
	}

	sort.Slice(ports, func(i, j int) bool {
		return sortorder.NaturalLess(ports[i].Name, ports[j].Name)
	})
	return ports, nil
}

// classifySysfsDevice inspects the subsystem links along the device path to
// tell how the port is attached to the system.
func classifySysfsDevice(devPath string) PortType {
	for dir := devPath; dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		subsystem, err := filepath.EvalSymlinks(filepath.Join(dir, "subsystem"))
		if err != nil {
			continue
		}
		switch filepath.Base(subsystem) {
		case "usb":
			return PortTypeUSB
		case "pci":
			return PortTypePCI
		}
	}
	return PortTypeUnknown
}

// readSysfsUsbInfo climbs from the tty interface directory towards the root
// until it finds the USB device directory, recognizable by its idVendor and
// idProduct attributes, and reads the descriptor strings from there.
func readSysfsUsbInfo(devPath string) *UsbInfo {
	for dir := devPath; dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		vendor := readSysfsFile(filepath.Join(dir, "idVendor"))
		product := readSysfsFile(filepath.Join(dir, "idProduct"))
		if vendor == "" || product == "" {
			continue
		}
		vid, err := strconv.ParseUint(vendor, 16, 16)
		if err != nil {
			return nil
		}
		pid, err := strconv.ParseUint(product, 16, 16)
		if err != nil {
			return nil
		}
		return &UsbInfo{
			VID:          uint16(vid),
			PID:          uint16(pid),
			SerialNumber: readSysfsFile(filepath.Join(dir, "serial")),
			Manufacturer: readSysfsFile(filepath.Join(dir, "manufacturer")),
			Product:      readSysfsFile(filepath.Join(dir, "product")),
		}
	}
	return nil
}

// readSysfsFile returns the trimmed content of a sysfs attribute, or the
// empty string when the attribute does not exist.
func readSysfsFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
