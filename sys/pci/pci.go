package pci

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// idsSearchPaths pci.ids数据库的常见安装路径, 按优先级排列.
var idsSearchPaths = []string{
	"/usr/share/hwdata/pci.ids",
	"/usr/share/misc/pci.ids",
	"/usr/share/pci.ids",
}

// DB 本地pci.ids数据库. 查询未命中一律返回空串, 不作为错误处理.
type DB struct {
	vendors map[uint16]string
	devices map[uint32]string
}

// LoadDB 依次尝试各安装路径加载pci.ids. 均不存在时返回空库.
func LoadDB() *DB {
	db := &DB{
		vendors: make(map[uint16]string),
		devices: make(map[uint32]string),
	}
	for _, path := range idsSearchPaths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		db.parse(f)
		_ = f.Close()
		break
	}
	return db
}

// NewDBFromReader 从给定内容构建数据库.
func NewDBFromReader(r io.Reader) *DB {
	db := &DB{
		vendors: make(map[uint16]string),
		devices: make(map[uint32]string),
	}
	db.parse(r)
	return db
}

// parse 解析pci.ids格式:
// 顶格行为厂商(vendor_id  name), 单缩进行为设备(device_id  name),
// 双缩进行为子系统, 此处不关心.
func (db *DB) parse(r io.Reader) {
	var currentVendor uint16
	var vendorValid bool

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "\t\t") {
			continue
		}
		// 厂商段之后是class段, 到此解析结束.
		if strings.HasPrefix(line, "C ") {
			break
		}
		if strings.HasPrefix(line, "\t") {
			if !vendorValid {
				continue
			}
			id, name, ok := splitIDLine(line[1:])
			if !ok {
				continue
			}
			db.devices[uint32(currentVendor)<<16|uint32(id)] = name
			continue
		}
		id, name, ok := splitIDLine(line)
		if !ok {
			vendorValid = false
			continue
		}
		currentVendor, vendorValid = id, true
		db.vendors[id] = name
	}
}

func splitIDLine(line string) (id uint16, name string, ok bool) {
	fields := strings.SplitN(line, " ", 2)
	if len(fields) != 2 {
		return 0, "", false
	}
	v, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 16, 16)
	if err != nil {
		return 0, "", false
	}
	return uint16(v), strings.TrimSpace(fields[1]), true
}

// VendorName 按厂商ID查询名称, 未命中返回空串.
func (db *DB) VendorName(vendor uint16) string {
	return db.vendors[vendor]
}

// DeviceName 按厂商ID+设备ID查询名称, 未命中返回空串.
func (db *DB) DeviceName(vendor, device uint16) string {
	return db.devices[uint32(vendor)<<16|uint32(device)]
}

// ParseAddress 将总线信息规整为标准PCI地址(domain:bus:device.function).
// 输入兼容"pci@0000:05:00.0"、"0000:05:00.0"与"05:00.0"三种形态.
func ParseAddress(busInfo string) (string, bool) {
	addr := strings.TrimPrefix(strings.TrimSpace(busInfo), "pci@")
	parts := strings.Split(addr, ":")
	var domain, bus uint64
	var devFunc string
	var err error
	switch len(parts) {
	case 3:
		if domain, err = strconv.ParseUint(parts[0], 16, 32); err != nil {
			return "", false
		}
		if bus, err = strconv.ParseUint(parts[1], 16, 8); err != nil {
			return "", false
		}
		devFunc = parts[2]
	case 2:
		if bus, err = strconv.ParseUint(parts[0], 16, 8); err != nil {
			return "", false
		}
		devFunc = parts[1]
	default:
		return "", false
	}
	df := strings.Split(devFunc, ".")
	if len(df) != 2 {
		return "", false
	}
	dev, err := strconv.ParseUint(df[0], 16, 8)
	if err != nil {
		return "", false
	}
	fn, err := strconv.ParseUint(df[1], 16, 8)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%04x:%02x:%02x.%d", domain, bus, dev, fn), true
}
