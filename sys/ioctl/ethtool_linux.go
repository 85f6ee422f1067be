package ioctl

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ethtool命令字. 参考: linux/ethtool.h
const (
	ethtoolGSet      = 0x00000001
	ethtoolGLink     = 0x0000000a
	ethtoolGRing     = 0x00000010
	ethtoolGStrings  = 0x0000001b
	ethtoolGSSetInfo = 0x00000037
	ethtoolGFeatures = 0x0000003a
	ethtoolGChannels = 0x0000003c

	ethSSFeatures = 4
	ethGStringLen = 32

	// maxFeatureCount 特性数量上限, 防止内核返回异常计数导致超大分配.
	maxFeatureCount = 1024
)

// ifreqData 携带指针的ifreq变体, 布局需与内核struct ifreq一致(64位下共40字节).
type ifreqData struct {
	name [unix.IFNAMSIZ]byte
	data unsafe.Pointer
	_    [16]byte
}

type ethtoolValue struct {
	Cmd  uint32 `struc:"uint32,little"`
	Data uint32 `struc:"uint32,little"`
}

// ethtoolCmd 即内核struct ethtool_cmd(ETHTOOL_GSET), 共44字节.
type ethtoolCmd struct {
	Cmd           uint32 `struc:"uint32,little"`
	Supported     uint32 `struc:"uint32,little"`
	Advertising   uint32 `struc:"uint32,little"`
	Speed         uint16 `struc:"uint16,little"`
	Duplex        uint8  `struc:"uint8"`
	Port          uint8  `struc:"uint8"`
	PhyAddress    uint8  `struc:"uint8"`
	Transceiver   uint8  `struc:"uint8"`
	Autoneg       uint8  `struc:"uint8"`
	MdioSupport   uint8  `struc:"uint8"`
	Maxtxpkt      uint32 `struc:"uint32,little"`
	Maxrxpkt      uint32 `struc:"uint32,little"`
	SpeedHi       uint16 `struc:"uint16,little"`
	EthTpMdix     uint8  `struc:"uint8"`
	EthTpMdixCtrl uint8  `struc:"uint8"`
	LpAdvertising uint32 `struc:"uint32,little"`
	Reserved0     uint32 `struc:"uint32,little"`
	Reserved1     uint32 `struc:"uint32,little"`
}

type ethtoolRingParam struct {
	Cmd               uint32 `struc:"uint32,little"`
	RxMaxPending      uint32 `struc:"uint32,little"`
	RxMiniMaxPending  uint32 `struc:"uint32,little"`
	RxJumboMaxPending uint32 `struc:"uint32,little"`
	TxMaxPending      uint32 `struc:"uint32,little"`
	RxPending         uint32 `struc:"uint32,little"`
	RxMiniPending     uint32 `struc:"uint32,little"`
	RxJumboPending    uint32 `struc:"uint32,little"`
	TxPending         uint32 `struc:"uint32,little"`
}

type ethtoolChannels struct {
	Cmd           uint32 `struc:"uint32,little"`
	MaxRx         uint32 `struc:"uint32,little"`
	MaxTx         uint32 `struc:"uint32,little"`
	MaxOther      uint32 `struc:"uint32,little"`
	MaxCombined   uint32 `struc:"uint32,little"`
	RxCount       uint32 `struc:"uint32,little"`
	TxCount       uint32 `struc:"uint32,little"`
	OtherCount    uint32 `struc:"uint32,little"`
	CombinedCount uint32 `struc:"uint32,little"`
}

type ethtoolSSetInfo struct {
	Cmd      uint32 `struc:"uint32,little"`
	Reserved uint32 `struc:"uint32,little"`
	Mask     uint64 `struc:"uint64,little"`
	Data     uint32 `struc:"uint32,little"`
}

// EthtoolSocket 承载SIOCETHTOOL查询的AF_INET数据报套接字.
// 每次探测独立创建, 用完即关, 不做缓存.
type EthtoolSocket struct {
	fd int
}

func DialEthtool() (*EthtoolSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, errors.Wrap(err, "open ethtool socket")
	}
	return &EthtoolSocket{fd: fd}, nil
}

func (s *EthtoolSocket) Close() error {
	return unix.Close(s.fd)
}

func (s *EthtoolSocket) ioctl(ifName string, buf []byte) error {
	if len(ifName) >= unix.IFNAMSIZ {
		return errors.Errorf("interface name %q exceeds IFNAMSIZ", ifName)
	}
	req := ifreqData{data: unsafe.Pointer(&buf[0])}
	copy(req.name[:], ifName)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(s.fd), unix.SIOCETHTOOL,
		uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		return errno
	}
	return nil
}

// call 打包请求结构体, 发起ioctl后将应答解包回原结构体.
func (s *EthtoolSocket) call(ifName string, v interface{}) error {
	var w bytes.Buffer
	if err := struc.Pack(&w, v); err != nil {
		return errors.Wrap(err, "pack ethtool request")
	}
	buf := w.Bytes()
	if err := s.ioctl(ifName, buf); err != nil {
		return err
	}
	if err := struc.Unpack(bytes.NewReader(buf), v); err != nil {
		return errors.Wrap(err, "unpack ethtool reply")
	}
	return nil
}

// DriverInfo 查询驱动名称、版本与总线信息(ETHTOOL_GDRVINFO).
func (s *EthtoolSocket) DriverInfo(ifName string) (DriverInfo, error) {
	drv, err := unix.IoctlGetEthtoolDrvinfo(s.fd, ifName)
	if err != nil {
		return DriverInfo{}, errors.Wrapf(err, "ethtool drvinfo of %s", ifName)
	}
	return DriverInfo{
		Driver:          unix.ByteSliceToString(drv.Driver[:]),
		Version:         unix.ByteSliceToString(drv.Version[:]),
		BusInfo:         unix.ByteSliceToString(drv.Bus_info[:]),
		FirmwareVersion: unix.ByteSliceToString(drv.Fw_version[:]),
	}, nil
}

// LinkDetected 查询物理载波状态(ETHTOOL_GLINK).
func (s *EthtoolSocket) LinkDetected(ifName string) (bool, error) {
	v := ethtoolValue{Cmd: ethtoolGLink}
	if err := s.call(ifName, &v); err != nil {
		return false, errors.Wrapf(err, "ethtool link of %s", ifName)
	}
	return v.Data != 0, nil
}

// Media 查询端口类型、速率与双工模式(ETHTOOL_GSET).
func (s *EthtoolSocket) Media(ifName string) (MediaInfo, error) {
	c := ethtoolCmd{Cmd: ethtoolGSet}
	if err := s.call(ifName, &c); err != nil {
		return MediaInfo{}, errors.Wrapf(err, "ethtool settings of %s", ifName)
	}
	m := MediaInfo{Port: portName(c.Port), Duplex: duplexName(c.Duplex)}
	speed := uint32(c.Speed) | uint32(c.SpeedHi)<<16
	// 0/0xffff/0xffffffff均表示速率未知.
	if speed != 0 && speed != 0xffff && speed != 0xffffffff {
		m.SpeedMbps = speed
	}
	return m, nil
}

// Rings 查询当前收发环大小(ETHTOOL_GRINGPARAM).
func (s *EthtoolSocket) Rings(ifName string) (RingParam, error) {
	r := ethtoolRingParam{Cmd: ethtoolGRing}
	if err := s.call(ifName, &r); err != nil {
		return RingParam{}, errors.Wrapf(err, "ethtool rings of %s", ifName)
	}
	return RingParam{RX: r.RxPending, TX: r.TxPending}, nil
}

// Channels 查询当前队列数(ETHTOOL_GCHANNELS).
func (s *EthtoolSocket) Channels(ifName string) (ChannelParam, error) {
	c := ethtoolChannels{Cmd: ethtoolGChannels}
	if err := s.call(ifName, &c); err != nil {
		return ChannelParam{}, errors.Wrapf(err, "ethtool channels of %s", ifName)
	}
	return ChannelParam{
		RX:       c.RxCount,
		TX:       c.TxCount,
		Other:    c.OtherCount,
		Combined: c.CombinedCount,
	}, nil
}

// Features 查询全部卸载特性名称及其生效状态.
// 流程: GSSET_INFO取计数 -> GSTRINGS取名称 -> GFEATURES取状态位.
func (s *EthtoolSocket) Features(ifName string) ([]Feature, error) {
	count, err := s.stringSetCount(ifName, ethSSFeatures)
	if err != nil {
		return nil, errors.Wrapf(err, "ethtool feature count of %s", ifName)
	}
	if count == 0 {
		return nil, nil
	}
	if count > maxFeatureCount {
		return nil, errors.Errorf("implausible feature count %d of %s", count, ifName)
	}
	names, err := s.stringSet(ifName, ethSSFeatures, count)
	if err != nil {
		return nil, errors.Wrapf(err, "ethtool feature names of %s", ifName)
	}

	blocks := (count + 31) / 32
	buf := make([]byte, 8+blocks*16)
	binary.LittleEndian.PutUint32(buf, ethtoolGFeatures)
	binary.LittleEndian.PutUint32(buf[4:], uint32(blocks))
	if err := s.ioctl(ifName, buf); err != nil {
		return nil, errors.Wrapf(err, "ethtool features of %s", ifName)
	}

	feats := make([]Feature, 0, count)
	for i := 0; i < count; i++ {
		if names[i] == "" {
			continue
		}
		// 每块16字节: available/requested/active/never_changed各4字节.
		active := binary.LittleEndian.Uint32(buf[8+(i/32)*16+8:])
		feats = append(feats, Feature{
			Name:   shortFeatureName(names[i]),
			Active: active&(1<<(uint(i)%32)) != 0,
		})
	}
	return feats, nil
}

func (s *EthtoolSocket) stringSetCount(ifName string, set int) (int, error) {
	info := ethtoolSSetInfo{Cmd: ethtoolGSSetInfo, Mask: 1 << uint(set)}
	if err := s.call(ifName, &info); err != nil {
		return 0, err
	}
	if info.Mask == 0 {
		// 内核不支持该字符串集.
		return 0, nil
	}
	return int(info.Data), nil
}

func (s *EthtoolSocket) stringSet(ifName string, set, count int) ([]string, error) {
	buf := make([]byte, 12+count*ethGStringLen)
	binary.LittleEndian.PutUint32(buf, ethtoolGStrings)
	binary.LittleEndian.PutUint32(buf[4:], uint32(set))
	binary.LittleEndian.PutUint32(buf[8:], uint32(count))
	if err := s.ioctl(ifName, buf); err != nil {
		return nil, err
	}
	names := make([]string, count)
	for i := range names {
		start := 12 + i*ethGStringLen
		names[i] = unix.ByteSliceToString(buf[start : start+ethGStringLen])
	}
	return names, nil
}

func portName(port uint8) string {
	switch port {
	case 0x00:
		return "TP"
	case 0x01:
		return "AUI"
	case 0x02:
		return "MII"
	case 0x03:
		return "FIBRE"
	case 0x04:
		return "BNC"
	case 0x05:
		return "DA"
	case 0xef:
		return "NONE"
	default:
		return "OTHER"
	}
}

func duplexName(duplex uint8) string {
	switch duplex {
	case 0x00:
		return "half"
	case 0x01:
		return "full"
	default:
		return "unknown"
	}
}

// shortFeatureName 将内核特性名映射为惯用简称, 未收录的保持原名.
func shortFeatureName(kernelName string) string {
	if short, ok := featureAliases[kernelName]; ok {
		return short
	}
	return kernelName
}

var featureAliases = map[string]string{
	"tx-tcp-segmentation":        "tso",
	"tx-generic-segmentation":    "gso",
	"rx-gro":                     "gro",
	"rx-lro":                     "lro",
	"rx-checksum":                "rx-csum",
	"tx-checksum-ip-generic":     "tx-csum",
	"tx-checksum-ipv4":           "tx-csum-ipv4",
	"tx-checksum-ipv6":           "tx-csum-ipv6",
	"tx-scatter-gather":          "sg",
	"tx-scatter-gather-fraglist": "sg-frag",
	"tx-vlan-hw-insert":          "tx-vlan",
	"rx-vlan-hw-parse":           "rx-vlan",
	"rx-hashing":                 "rxhash",
	"rx-ntuple-filter":           "ntuple",
}
