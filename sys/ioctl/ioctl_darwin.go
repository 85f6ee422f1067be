package ioctl

import (
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ifm_status/ifm_active取值. 参考: net/if_media.h
const (
	ifmAvalid   = 0x00000001
	ifmActive   = 0x00000002
	ifmTypeMask = 0x000000e0
	ifmEther    = 0x00000020
	ifmFDDI     = 0x00000060
	ifm80211    = 0x00000080
)

// darwinFlagNames BSD接口标志位全集, 按位序排列. 参考: net/if.h
var darwinFlagNames = []struct {
	bit  uint32
	name string
}{
	{0x1, "UP"},
	{0x2, "BROADCAST"},
	{0x4, "DEBUG"},
	{0x8, "LOOPBACK"},
	{0x10, "POINTOPOINT"},
	{0x20, "SMART"},
	{0x40, "RUNNING"},
	{0x80, "NOARP"},
	{0x100, "PROMISC"},
	{0x200, "ALLMULTI"},
	{0x400, "OACTIVE"},
	{0x800, "SIMPLEX"},
	{0x1000, "LINK0"},
	{0x2000, "LINK1"},
	{0x4000, "LINK2"},
	{0x8000, "MULTICAST"},
}

// FlagNames 将内核原始标志字解析为标志名列表, 结果按位序排列且无重复.
func FlagNames(raw uint32) []string {
	names := make([]string, 0, 8)
	for _, f := range darwinFlagNames {
		if raw&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	return names
}

// ifreq darwin侧布局: 16字节名称 + 16字节联合体.
type ifreq struct {
	name [unix.IFNAMSIZ]byte
	data [16]byte
}

// ifMediaReq 即struct ifmediareq, 64位下共48字节.
type ifMediaReq struct {
	name    [unix.IFNAMSIZ]byte
	current int32
	mask    int32
	status  int32
	active  int32
	count   int32
	_       int32
	ulist   *int32
}

// InetSocket 承载接口查询ioctl的AF_INET数据报套接字.
// 每次探测独立创建, 用完即关, 不做缓存.
type InetSocket struct {
	fd int
}

func DialInet() (*InetSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, errors.Wrap(err, "open inet socket")
	}
	return &InetSocket{fd: fd}, nil
}

func (s *InetSocket) Close() error {
	return unix.Close(s.fd)
}

func (s *InetSocket) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(s.fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func newIfreq(ifName string) (ifreq, error) {
	var req ifreq
	if len(ifName) >= unix.IFNAMSIZ {
		return req, errors.Errorf("interface name %q exceeds IFNAMSIZ", ifName)
	}
	copy(req.name[:], ifName)
	return req, nil
}

// Flags 查询完整的BSD标志字(SIOCGIFFLAGS).
// 注意: 标准库net.Interface仅保留可移植标志子集, 此处取原始16位全量.
func (s *InetSocket) Flags(ifName string) (uint32, error) {
	req, err := newIfreq(ifName)
	if err != nil {
		return 0, err
	}
	if err = s.ioctl(uintptr(unix.SIOCGIFFLAGS), unsafe.Pointer(&req)); err != nil {
		return 0, errors.Wrapf(err, "query flags of %s", ifName)
	}
	return uint32(*(*uint16)(unsafe.Pointer(&req.data[0]))), nil
}

// MTU 查询最大传输单元(SIOCGIFMTU).
func (s *InetSocket) MTU(ifName string) (uint32, error) {
	req, err := newIfreq(ifName)
	if err != nil {
		return 0, err
	}
	if err = s.ioctl(uintptr(unix.SIOCGIFMTU), unsafe.Pointer(&req)); err != nil {
		return 0, errors.Wrapf(err, "query mtu of %s", ifName)
	}
	mtu := *(*int32)(unsafe.Pointer(&req.data[0]))
	if mtu < 0 {
		return 0, errors.Errorf("negative mtu %d of %s", mtu, ifName)
	}
	return uint32(mtu), nil
}

// Metric 查询路由度量值(SIOCGIFMETRIC). 内核对常规接口返回0, 按惯例置为1.
func (s *InetSocket) Metric(ifName string) (uint32, error) {
	req, err := newIfreq(ifName)
	if err != nil {
		return 0, err
	}
	if err = s.ioctl(uintptr(unix.SIOCGIFMETRIC), unsafe.Pointer(&req)); err != nil {
		return 0, errors.Wrapf(err, "query metric of %s", ifName)
	}
	metric := *(*int32)(unsafe.Pointer(&req.data[0]))
	if metric <= 0 {
		metric = 1
	}
	return uint32(metric), nil
}

// Media 查询介质类别与载波状态(SIOCGIFMEDIA).
// linkValid为false时表示该接口不上报载波, 调用方应回退到RUNNING标志.
func (s *InetSocket) Media(ifName string) (class string, linkValid, linkActive bool, err error) {
	var req ifMediaReq
	if len(ifName) >= unix.IFNAMSIZ {
		return "", false, false, errors.Errorf("interface name %q exceeds IFNAMSIZ", ifName)
	}
	copy(req.name[:], ifName)
	if err = s.ioctl(uintptr(unix.SIOCGIFMEDIA), unsafe.Pointer(&req)); err != nil {
		return "", false, false, errors.Wrapf(err, "query media of %s", ifName)
	}
	switch uint32(req.current) & ifmTypeMask {
	case ifmEther:
		class = "Ethernet"
	case ifmFDDI:
		class = "FDDI"
	case ifm80211:
		class = "Wireless"
	}
	linkValid = uint32(req.status)&ifmAvalid != 0
	linkActive = uint32(req.status)&ifmActive != 0
	return class, linkValid, linkActive, nil
}
