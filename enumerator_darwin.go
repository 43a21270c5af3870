//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serialport

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/fvbommel/sortorder"
)

// The enumerator walks the I/O Registry through dynamically loaded IOKit
// and CoreFoundation bindings, so it works without cgo.

var iokitLoadError = iokit.load()

func nativeAvailablePorts() ([]*PortInfo, error) {
	if iokitLoadError != nil {
		return nil, portError(Unknown, "unable to enumerate serial ports", iokitLoadError)
	}

	services, err := matchingServices("IOSerialBSDClient")
	if err != nil {
		return nil, portError(Unknown, "unable to enumerate serial ports", err)
	}

	var ports []*PortInfo
	for _, service := range services {
		info, err := portInfoFromService(service)
		service.release()
		if err != nil {
			return nil, portError(Unknown, "unable to enumerate serial ports", err)
		}
		ports = append(ports, info)
	}

	sort.Slice(ports, func(i, j int) bool {
		return sortorder.NaturalLess(ports[i].Name, ports[j].Name)
	})
	return ports, nil
}

// portInfoFromService builds a PortInfo for an IOSerialBSDClient service. If
// the service hangs off a USB device the descriptor metadata is attached.
func portInfoFromService(service ioRegistryEntry) (*PortInfo, error) {
	name, err := service.stringProperty("IOCalloutDevice")
	if err != nil {
		return nil, fmt.Errorf("cannot determine device node: %w", err)
	}
	info := &PortInfo{Name: name, Type: PortTypeUnknown}

	usbDeviceClass := map[string]bool{
		"IOUSBDevice":     true,
		"IOUSBHostDevice": true,
	}
	device := service
	for !usbDeviceClass[device.class()] {
		parent, err := device.parent("IOService")
		if err != nil {
			return info, nil
		}
		device = parent
	}

	vid, _ := device.intProperty("idVendor", kCFNumberSInt16Type)
	pid, _ := device.intProperty("idProduct", kCFNumberSInt16Type)
	serialNumber, _ := device.stringProperty("USB Serial Number")
	manufacturer, _ := device.stringProperty("USB Vendor Name")

	info.Type = PortTypeUSB
	info.USB = &UsbInfo{
		VID:          uint16(vid),
		PID:          uint16(pid),
		SerialNumber: serialNumber,
		Manufacturer: manufacturer,
		Product:      device.name(),
	}
	return info, nil
}

// matchingServices collects the registered services of the given class. An
// iterator is invalidated when the registry changes under it, in which case
// the collection is restarted from scratch.
func matchingServices(class string) ([]ioRegistryEntry, error) {
	var iter ioIterator
	if iokit.IOServiceGetMatchingServices(iokit.masterPort, cfDictionaryRef(iokit.IOServiceMatching(class)), &iter).failed() {
		return nil, errors.New("IOServiceGetMatchingServices failed")
	}
	defer iter.release()

	var services []ioRegistryEntry
	for tries := 0; tries < 5; tries++ {
		if service, ok := iter.next(); ok {
			services = append(services, ioRegistryEntry(service))
			tries = 0
			continue
		}
		if len(services) == 0 || iter.isValid() {
			return services, nil
		}
		for _, s := range services {
			s.release()
		}
		services = services[:0]
		iter.reset()
	}
	return nil, errors.New("I/O Registry changed while iterating")
}

type iokitLibrary struct {
	masterPort uintptr

	IOIteratorIsValid               func(ioIterator) bool
	IOIteratorNext                  func(ioIterator) ioObject
	IOIteratorReset                 func(ioIterator)
	IOObjectGetClass                func(ioObject, *ioName) kernReturn
	IOObjectRelease                 func(ioObject) int
	IORegistryEntryCreateCFProperty func(ioRegistryEntry, cfStringRef, cfAllocatorRef, uint32) cfTypeRef
	IORegistryEntryGetName          func(ioRegistryEntry, *ioName) kernReturn
	IORegistryEntryGetParentEntry   func(ioRegistryEntry, string, *ioRegistryEntry) kernReturn
	IOServiceGetMatchingServices    func(uintptr, cfDictionaryRef, *ioIterator) kernReturn
	IOServiceMatching               func(string) cfMutableDictionaryRef

	allocator cfAllocatorRef

	CFNumberGetValue          func(cfNumberRef, cfNumberType, unsafe.Pointer) bool
	CFRelease                 func(cfTypeRef)
	CFStringCreateWithCString func(cfAllocatorRef, string, cfStringEncoding) cfStringRef
	CFStringGetCString        func(cfStringRef, *byte, int, cfStringEncoding) bool
	CFStringGetCStringPtr     func(cfStringRef, cfStringEncoding) string
}

var iokit iokitLibrary

func (l *iokitLibrary) load() error {
	handle, err := purego.Dlopen("/System/Library/Frameworks/IOKit.framework/IOKit", purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return err
	}
	// The zero port is interpreted as kIOMasterPortDefault.
	l.masterPort = 0
	purego.RegisterLibFunc(&l.IOIteratorIsValid, handle, "IOIteratorIsValid")
	purego.RegisterLibFunc(&l.IOIteratorNext, handle, "IOIteratorNext")
	purego.RegisterLibFunc(&l.IOIteratorReset, handle, "IOIteratorReset")
	purego.RegisterLibFunc(&l.IOObjectGetClass, handle, "IOObjectGetClass")
	purego.RegisterLibFunc(&l.IOObjectRelease, handle, "IOObjectRelease")
	purego.RegisterLibFunc(&l.IORegistryEntryCreateCFProperty, handle, "IORegistryEntryCreateCFProperty")
	purego.RegisterLibFunc(&l.IORegistryEntryGetName, handle, "IORegistryEntryGetName")
	purego.RegisterLibFunc(&l.IORegistryEntryGetParentEntry, handle, "IORegistryEntryGetParentEntry")
	purego.RegisterLibFunc(&l.IOServiceGetMatchingServices, handle, "IOServiceGetMatchingServices")
	purego.RegisterLibFunc(&l.IOServiceMatching, handle, "IOServiceMatching")

	cfHandle, err := purego.Dlopen("/System/Library/Frameworks/CoreFoundation.framework/CoreFoundation", purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return err
	}
	ptr, err := purego.Dlsym(cfHandle, "kCFAllocatorDefault")
	if err != nil {
		return err
	}
	l.allocator = *((*cfAllocatorRef)(unsafe.Pointer(ptr)))
	purego.RegisterLibFunc(&l.CFNumberGetValue, cfHandle, "CFNumberGetValue")
	purego.RegisterLibFunc(&l.CFRelease, cfHandle, "CFRelease")
	purego.RegisterLibFunc(&l.CFStringCreateWithCString, cfHandle, "CFStringCreateWithCString")
	purego.RegisterLibFunc(&l.CFStringGetCString, cfHandle, "CFStringGetCString")
	purego.RegisterLibFunc(&l.CFStringGetCStringPtr, cfHandle, "CFStringGetCStringPtr")
	return nil
}

type (
	kernReturn      uint32
	ioName          [128]byte
	ioObject        uintptr
	ioIterator      ioObject
	ioRegistryEntry ioObject
)

func (r kernReturn) failed() bool {
	return r != 0
}

func (s *ioName) String() string {
	if i := bytes.IndexByte(s[:], 0); i >= 0 {
		return string(s[:i])
	}
	return string(s[:])
}

func (o ioObject) release() {
	iokit.IOObjectRelease(o)
}

func (o ioObject) class() string {
	var name ioName
	if iokit.IOObjectGetClass(o, &name).failed() {
		return ""
	}
	return name.String()
}

func (i ioIterator) isValid() bool {
	return iokit.IOIteratorIsValid(i)
}

func (i ioIterator) next() (ioObject, bool) {
	o := iokit.IOIteratorNext(i)
	return o, o != 0
}

func (i ioIterator) reset() {
	iokit.IOIteratorReset(i)
}

func (i ioIterator) release() {
	ioObject(i).release()
}

func (e ioRegistryEntry) release() {
	ioObject(e).release()
}

func (e ioRegistryEntry) class() string {
	return ioObject(e).class()
}

func (e ioRegistryEntry) name() string {
	var name ioName
	if iokit.IORegistryEntryGetName(e, &name).failed() {
		return ""
	}
	return name.String()
}

func (e ioRegistryEntry) parent(plane string) (ioRegistryEntry, error) {
	var parent ioRegistryEntry
	if iokit.IORegistryEntryGetParentEntry(e, plane, &parent).failed() {
		return 0, errors.New("no parent device available")
	}
	return parent, nil
}

func (e ioRegistryEntry) property(key string) (cfTypeRef, error) {
	k := iokit.CFStringCreateWithCString(iokit.allocator, key, kCFStringEncodingUTF8)
	defer iokit.CFRelease(cfTypeRef(k))
	property := iokit.IORegistryEntryCreateCFProperty(e, k, iokit.allocator, 0)
	if property == 0 {
		return 0, errors.New("property not found: " + key)
	}
	return property, nil
}

func (e ioRegistryEntry) stringProperty(key string) (string, error) {
	property, err := e.property(key)
	if err != nil {
		return "", err
	}
	defer iokit.CFRelease(property)

	if str := iokit.CFStringGetCStringPtr(cfStringRef(property), kCFStringEncodingUTF8); str != "" {
		return str, nil
	}
	var buf ioName
	if !iokit.CFStringGetCString(cfStringRef(property), &buf[0], len(buf), kCFStringEncodingUTF8) {
		return "", fmt.Errorf("property %q cannot be converted", key)
	}
	return buf.String(), nil
}

func (e ioRegistryEntry) intProperty(key string, numberType cfNumberType) (int64, error) {
	property, err := e.property(key)
	if err != nil {
		return 0, err
	}
	defer iokit.CFRelease(property)
	var value int64
	if !iokit.CFNumberGetValue(cfNumberRef(property), numberType, unsafe.Pointer(&value)) {
		return 0, fmt.Errorf("property %q cannot be converted", key)
	}
	return value, nil
}

type (
	cfIndex          int
	cfStringEncoding uint32
	cfTypeRef        uintptr

	cfAllocatorRef         cfTypeRef
	cfDictionaryRef        cfTypeRef
	cfMutableDictionaryRef cfTypeRef
	cfNumberRef            cfTypeRef
	cfNumberType           cfIndex
	cfStringRef            cfTypeRef
)

const kCFNumberSInt16Type cfNumberType = 2

const kCFStringEncodingUTF8 cfStringEncoding = 0x08000100
