package pci

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// AddressForInterface 从sysfs推导接口的PCI地址, 供bus_info缺失时回退.
// 先读device/uevent中的PCI_SLOT_NAME, 再回退到device链接目标名.
func AddressForInterface(ifName string) (string, bool) {
	ueventPath := fmt.Sprintf("/sys/class/net/%s/device/uevent", ifName)
	if content, err := os.ReadFile(ueventPath); err == nil {
		for _, line := range strings.Split(string(content), "\n") {
			if strings.HasPrefix(line, "PCI_SLOT_NAME=") {
				if addr, ok := ParseAddress(strings.TrimPrefix(line, "PCI_SLOT_NAME=")); ok {
					return addr, true
				}
			}
		}
	}

	deviceLink := fmt.Sprintf("/sys/class/net/%s/device", ifName)
	if target, err := os.Readlink(deviceLink); err == nil {
		return ParseAddress(filepath.Base(target))
	}
	return "", false
}

// DeviceIDs 读取接口所属设备的厂商ID与设备ID.
// sysfs中以"0x8086"形态存储.
func DeviceIDs(ifName string) (vendor, device uint16, err error) {
	vendor, err = readSysfsID(fmt.Sprintf("/sys/class/net/%s/device/vendor", ifName))
	if err != nil {
		return 0, 0, errors.Wrapf(err, "vendor id of %s", ifName)
	}
	device, err = readSysfsID(fmt.Sprintf("/sys/class/net/%s/device/device", ifName))
	if err != nil {
		return 0, 0, errors.Wrapf(err, "device id of %s", ifName)
	}
	return vendor, device, nil
}

func readSysfsID(path string) (uint16, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	raw := strings.TrimPrefix(strings.TrimSpace(string(content)), "0x")
	id, err := strconv.ParseUint(raw, 16, 16)
	if err != nil {
		return 0, errors.Wrapf(err, "malformed id %q in %s", raw, path)
	}
	return uint16(id), nil
}
