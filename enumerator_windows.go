//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serialport

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/fvbommel/sortorder"
)

func nativeAvailablePorts() ([]*PortInfo, error) {
	guids, err := windows.SetupDiClassGuidsFromNameEx("Ports", "")
	if err != nil {
		return nil, portError(Unknown, "unable to enumerate serial ports", err)
	}

	var ports []*PortInfo
	for i := range guids {
		guidPorts, err := enumerateDeviceClass(&guids[i])
		if err != nil {
			return nil, err
		}
		ports = append(ports, guidPorts...)
	}

	sort.Slice(ports, func(i, j int) bool {
		return sortorder.NaturalLess(ports[i].Name, ports[j].Name)
	})
	return ports, nil
}

func enumerateDeviceClass(guid *windows.GUID) ([]*PortInfo, error) {
	devices, err := windows.SetupDiGetClassDevsEx(guid, "", 0, windows.DIGCF_PRESENT, 0, "")
	if err != nil {
		return nil, portError(Unknown, "unable to enumerate serial ports", err)
	}
	defer devices.Close()

	var ports []*PortInfo
	for i := 0; ; i++ {
		device, err := devices.EnumDeviceInfo(i)
		if err != nil {
			// The error marking the end of the set is not distinguishable
			// from a real failure, so iteration simply stops here.
			break
		}

		name, err := devicePortName(devices, device)
		if err != nil || name == "" {
			continue
		}

		info := &PortInfo{Name: name, Type: PortTypeUnknown}
		deviceID, err := devices.DeviceInstanceID(device)
		if err == nil {
			parseDeviceID(deviceID, info)
		}
		if info.Type == PortTypeUSB && info.USB != nil {
			if mfg, err := devices.DeviceRegistryProperty(device, windows.SPDRP_MFG); err == nil {
				if s, ok := mfg.(string); ok {
					info.USB.Manufacturer = s
				}
			}
			if friendly, err := devices.DeviceRegistryProperty(device, windows.SPDRP_FRIENDLYNAME); err == nil {
				if s, ok := friendly.(string); ok {
					info.USB.Product = trimPortSuffix(s, name)
				}
			}
		}
		ports = append(ports, info)
	}
	return ports, nil
}

// devicePortName reads the "PortName" value (for example "COM3") from the
// device's driver registry key.
func devicePortName(devices windows.DevInfo, device *windows.DevInfoData) (string, error) {
	h, err := devices.OpenDevRegKey(device, windows.DICS_FLAG_GLOBAL, 0, windows.DIREG_DEV, windows.KEY_READ)
	if err != nil {
		return "", err
	}
	key := registry.Key(h)
	defer key.Close()

	name, _, err := key.GetStringValue("PortName")
	return name, err
}

// trimPortSuffix removes the " (COMn)" decoration Windows appends to the
// friendly name of a port.
func trimPortSuffix(friendly, portName string) string {
	return strings.TrimSuffix(friendly, " ("+portName+")")
}

var (
	usbDeviceIDRe  = regexp.MustCompile(`^USB\\VID_([0-9a-fA-F]{4})&PID_([0-9a-fA-F]{4})(&MI_\d{2})?\\(.*)$`)
	ftdiDeviceIDRe = regexp.MustCompile(`^FTDIBUS\\VID_([0-9a-fA-F]{4})\+PID_([0-9a-fA-F]{4})(\+(\w+))?\\`)
)

// parseDeviceID extracts bus type and USB metadata from a device instance
// ID like "USB\VID_2341&PID_0043\85531303437351017171" or
// "FTDIBUS\VID_0403+PID_6001+A6004CCFA\0000".
func parseDeviceID(deviceID string, info *PortInfo) {
	if m := usbDeviceIDRe.FindStringSubmatch(deviceID); m != nil {
		vid, err1 := strconv.ParseUint(m[1], 16, 16)
		pid, err2 := strconv.ParseUint(m[2], 16, 16)
		if err1 != nil || err2 != nil {
			return
		}
		info.Type = PortTypeUSB
		info.USB = &UsbInfo{VID: uint16(vid), PID: uint16(pid)}
		// A composite device interface carries an instance path generated
		// by the hub, not the device serial number.
		if m[3] == "" && !strings.Contains(m[4], "&") {
			info.USB.SerialNumber = m[4]
		}
		return
	}
	if m := ftdiDeviceIDRe.FindStringSubmatch(deviceID); m != nil {
		vid, err1 := strconv.ParseUint(m[1], 16, 16)
		pid, err2 := strconv.ParseUint(m[2], 16, 16)
		if err1 != nil || err2 != nil {
			return
		}
		info.Type = PortTypeUSB
		info.USB = &UsbInfo{VID: uint16(vid), PID: uint16(pid), SerialNumber: m[4]}
		return
	}
	if strings.HasPrefix(deviceID, "PCI\\") {
		info.Type = PortTypePCI
	}
}

// Rates the Win32 API defines CBR_ constants for.
var windowsBaudRates = []uint32{
	110, 300, 600, 1200, 2400, 4800, 9600, 14400,
	19200, 38400, 57600, 115200, 128000, 256000,
}

func nativeAvailableBaudRates() []uint32 {
	rates := make([]uint32, len(windowsBaudRates))
	copy(rates, windowsBaudRates)
	return rates
}
