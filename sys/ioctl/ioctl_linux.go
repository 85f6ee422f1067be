package ioctl

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// linuxFlagNames 接口标志位全集, 按位序排列. 参考: linux/if.h
var linuxFlagNames = []struct {
	bit  uint32
	name string
}{
	{0x1, "UP"},
	{0x2, "BROADCAST"},
	{0x4, "DEBUG"},
	{0x8, "LOOPBACK"},
	{0x10, "POINTOPOINT"},
	{0x20, "NOTRAILERS"},
	{0x40, "RUNNING"},
	{0x80, "NOARP"},
	{0x100, "PROMISC"},
	{0x200, "ALLMULTI"},
	{0x400, "MASTER"},
	{0x800, "SLAVE"},
	{0x1000, "MULTICAST"},
	{0x2000, "PORTSEL"},
	{0x4000, "AUTOMEDIA"},
	{0x8000, "DYNAMIC"},
}

// FlagNames 将内核原始标志字解析为标志名列表, 结果按位序排列且无重复.
func FlagNames(raw uint32) []string {
	names := make([]string, 0, 8)
	for _, f := range linuxFlagNames {
		if raw&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	return names
}

// Metric 查询路由度量值(SIOCGIFMETRIC). 内核对常规接口返回0, 按惯例置为1.
func Metric(ifName string) (uint32, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return 0, errors.Wrap(err, "open metric socket")
	}
	defer unix.Close(fd)

	ifr, err := unix.NewIfreq(ifName)
	if err != nil {
		return 0, errors.Wrapf(err, "build ifreq of %s", ifName)
	}
	if err = unix.IoctlIfreq(fd, unix.SIOCGIFMETRIC, ifr); err != nil {
		return 0, errors.Wrapf(err, "query metric of %s", ifName)
	}
	metric := ifr.Uint32()
	if metric == 0 {
		metric = 1
	}
	return metric, nil
}
