package nic

import (
	"net"
	"os"
	"runtime"

	"github.com/kisun-bit/ifprobe/sys/ioctl"
	"github.com/kisun-bit/ifprobe/sys/pci"
	"github.com/kisun-bit/ifprobe/util/logger"
	"github.com/pkg/errors"
	gopsnet "github.com/shirou/gopsutil/v3/net"
	"github.com/thoas/go-funk"
	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

const netnsRunDir = "/var/run/netns"

// linuxProbe 基于netlink枚举 + ioctl/ethtool逐项查询的linux探测实现.
type linuxProbe struct {
	db *pci.DB
}

// NewProbe 构建当前平台的探测器. pci.ids库仅加载一次, 随探测器生命周期存续.
func NewProbe() Probe {
	return &linuxProbe{db: pci.LoadDB()}
}

// Enumerate 列举根命名空间及全部具名命名空间下的接口.
// 根命名空间枚举失败即致命; 具名命名空间扫描需要root权限, 失败仅降级.
func (p *linuxProbe) Enumerate() ([]Handle, error) {
	nlh, err := netlink.NewHandle()
	if err != nil {
		return nil, errors.Wrap(err, "open netlink handle")
	}
	defer nlh.Delete()

	links, err := nlh.LinkList()
	if err != nil {
		return nil, errors.Wrap(err, "list links")
	}

	handles := make([]Handle, 0, len(links))
	seen := make([]string, 0, len(links))
	appendHandle := func(h Handle) {
		key := h.Namespace + "/" + h.Name
		if funk.InStrings(seen, key) {
			return
		}
		seen = append(seen, key)
		handles = append(handles, h)
	}
	for _, link := range links {
		attrs := link.Attrs()
		appendHandle(Handle{Name: attrs.Name, Index: attrs.Index})
	}

	entries, err := os.ReadDir(netnsRunDir)
	if err != nil {
		return handles, nil
	}
	for _, entry := range entries {
		nsHandles, e := p.enumerateNamespace(entry.Name())
		if e != nil {
			logger.Debugf("skip netns %s: %v", entry.Name(), e)
			continue
		}
		for _, h := range nsHandles {
			appendHandle(h)
		}
	}
	return handles, nil
}

func (p *linuxProbe) enumerateNamespace(name string) ([]Handle, error) {
	nsh, err := netns.GetFromName(name)
	if err != nil {
		return nil, err
	}
	defer nsh.Close()

	nlh, err := netlink.NewHandleAt(nsh)
	if err != nil {
		return nil, err
	}
	defer nlh.Delete()

	links, err := nlh.LinkList()
	if err != nil {
		return nil, err
	}
	handles := make([]Handle, 0, len(links))
	for _, link := range links {
		attrs := link.Attrs()
		handles = append(handles, Handle{Name: attrs.Name, Namespace: name, Index: attrs.Index})
	}
	return handles, nil
}

// Extract 提取单个接口的记录. 除接口身份不可确认外, 任何单项查询失败
// 都只体现为字段缺失.
func (p *linuxProbe) Extract(h Handle, verbose bool) (Record, error) {
	if h.Name == "" {
		return Record{}, errors.New("empty interface name")
	}
	rec := Record{
		Name:      h.Name,
		Namespace: h.Namespace,
		Flags:     make([]string, 0),
		IPv4:      make([]IPv4Addr, 0),
		IPv6:      make([]IPv6Addr, 0),
	}

	// 具名命名空间下需切换线程命名空间, ioctl级查询才能命中目标接口.
	// 切换失败时仍可经netlink拿到基础属性, ethtool级字段缺失.
	inNs := h.Namespace == ""
	if h.Namespace != "" {
		if restore, e := enterNamespace(h.Namespace); e == nil {
			defer restore()
			inNs = true
		} else {
			logger.Debugf("probe %s from outside netns %s: %v", h.Name, h.Namespace, e)
		}
	}

	nlh, err := p.openNetlink(h, inNs)
	if err != nil {
		return Record{}, errors.Wrap(err, "open netlink handle")
	}
	defer nlh.Delete()

	link, err := nlh.LinkByName(h.Name)
	if err != nil {
		return Record{}, errors.Wrapf(err, "link %s", h.Name)
	}
	attrs := link.Attrs()

	rec.Flags = ioctl.FlagNames(attrs.RawFlags)
	if hw := attrs.HardwareAddr; len(hw) > 0 {
		rec.MAC = hw.String()
	}
	if attrs.MTU > 0 {
		mtu := uint32(attrs.MTU)
		rec.MTU = &mtu
	}
	if st := attrs.Statistics; st != nil {
		rec.Stats = Stats{
			RxBytes:   st.RxBytes,
			TxBytes:   st.TxBytes,
			RxPackets: st.RxPackets,
			TxPackets: st.TxPackets,
		}
	} else if inNs {
		rec.Stats = countersOf(h.Name)
	}

	p.collectAddrs(nlh, link, &rec)

	// 载波状态缺省以RUNNING标志近似, ethtool可用时以GLINK为准.
	linkDetected := rec.HasFlag("RUNNING")
	if inNs {
		if es, e := ioctl.DialEthtool(); e == nil {
			linkDetected = p.collectEthtool(es, &rec, linkDetected, verbose)
			_ = es.Close()
		} else {
			logger.Debugf("ethtool unavailable for %s: %v", h.Name, e)
		}
		if metric, e := ioctl.Metric(h.Name); e == nil {
			rec.Metric = &metric
		} else {
			logger.Debugf("no metric for %s: %v", h.Name, e)
		}
	}
	// 载波不可能挂在管理状态DOWN的接口上.
	rec.LinkUp = linkDetected && rec.Up()

	p.resolvePCI(&rec)
	return rec, nil
}

func (p *linuxProbe) openNetlink(h Handle, inNs bool) (*netlink.Handle, error) {
	if inNs {
		return netlink.NewHandle()
	}
	nsh, err := netns.GetFromName(h.Namespace)
	if err != nil {
		return nil, err
	}
	defer nsh.Close()
	return netlink.NewHandleAt(nsh)
}

func (p *linuxProbe) collectAddrs(nlh *netlink.Handle, link netlink.Link, rec *Record) {
	v4, err := nlh.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		logger.Debugf("no ipv4 addresses for %s: %v", rec.Name, err)
	}
	for _, a := range v4 {
		if a.IPNet == nil || a.IPNet.IP == nil {
			continue
		}
		ones, _ := a.IPNet.Mask.Size()
		rec.IPv4 = append(rec.IPv4, IPv4Addr{
			Address: a.IPNet.IP.String(),
			Netmask: net.IP(a.IPNet.Mask).String(),
			Prefix:  ones,
		})
	}

	v6, err := nlh.AddrList(link, netlink.FAMILY_V6)
	if err != nil {
		logger.Debugf("no ipv6 addresses for %s: %v", rec.Name, err)
	}
	for _, a := range v6 {
		if a.IPNet == nil || a.IPNet.IP == nil {
			continue
		}
		ones, _ := a.IPNet.Mask.Size()
		rec.IPv6 = append(rec.IPv6, IPv6Addr{
			Address: a.IPNet.IP.String(),
			Prefix:  ones,
			Scope:   ipv6Scope(a.IPNet.IP),
		})
	}
}

// collectEthtool 采集驱动、介质与verbose级信息, 返回修正后的载波状态.
func (p *linuxProbe) collectEthtool(es *ioctl.EthtoolSocket, rec *Record, linkDetected, verbose bool) bool {
	if detected, e := es.LinkDetected(rec.Name); e == nil {
		linkDetected = detected
	} else {
		logger.Debugf("no ethtool link state for %s: %v", rec.Name, e)
	}

	if di, e := es.DriverInfo(rec.Name); e == nil {
		rec.DriverName = di.Driver
		rec.DriverVersion = di.Version
		rec.BusInfo = di.BusInfo
	} else {
		logger.Debugf("no driver info for %s: %v", rec.Name, e)
	}

	if mi, e := es.Media(rec.Name); e == nil {
		rec.Media = mi.String()
	} else {
		logger.Debugf("no media info for %s: %v", rec.Name, e)
	}

	if !verbose {
		return linkDetected
	}
	v := &Verbose{}
	if feats, e := es.Features(rec.Name); e == nil && len(feats) > 0 {
		fs := NewFeatureSet()
		for _, f := range feats {
			fs.Set(f.Name, f.Active)
		}
		v.Features = fs
	} else if e != nil {
		logger.Debugf("no features for %s: %v", rec.Name, e)
	}
	if rings, e := es.Rings(rec.Name); e == nil {
		v.Rings = &rings
	} else {
		logger.Debugf("no ring params for %s: %v", rec.Name, e)
	}
	if channels, e := es.Channels(rec.Name); e == nil {
		v.Channels = &channels
	} else {
		logger.Debugf("no channel params for %s: %v", rec.Name, e)
	}
	if v.Features != nil || v.Rings != nil || v.Channels != nil {
		rec.Verbose = v
	}
	return linkDetected
}

// resolvePCI 规整PCI地址并解析厂商/设备名. sysfs回退仅对根命名空间
// 生效(/sys/class/net不随线程命名空间切换).
func (p *linuxProbe) resolvePCI(rec *Record) {
	addr, ok := pci.ParseAddress(rec.BusInfo)
	if !ok && rec.Namespace == "" {
		addr, ok = pci.AddressForInterface(rec.Name)
	}
	if !ok {
		return
	}
	rec.PCIAddress = addr
	if rec.Namespace != "" {
		return
	}
	vendor, device, err := pci.DeviceIDs(rec.Name)
	if err != nil {
		logger.Debugf("no pci ids for %s: %v", rec.Name, err)
		return
	}
	rec.VendorName = p.db.VendorName(vendor)
	rec.DeviceName = p.db.DeviceName(vendor, device)
}

// countersOf 以gopsutil读取流量计数器, 作为netlink统计缺失时的回退.
func countersOf(ifName string) Stats {
	counters, err := gopsnet.IOCounters(true)
	if err != nil {
		logger.Debugf("no io counters for %s: %v", ifName, err)
		return Stats{}
	}
	for _, c := range counters {
		if c.Name == ifName {
			return Stats{
				RxBytes:   c.BytesRecv,
				TxBytes:   c.BytesSent,
				RxPackets: c.PacketsRecv,
				TxPackets: c.PacketsSent,
			}
		}
	}
	return Stats{}
}

// enterNamespace 将当前线程切入目标命名空间并返回恢复函数.
// 线程在恢复前保持锁定, 防止goroutine漂移到其他线程.
func enterNamespace(name string) (func(), error) {
	runtime.LockOSThread()
	origin, err := netns.Get()
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	target, err := netns.GetFromName(name)
	if err != nil {
		_ = origin.Close()
		runtime.UnlockOSThread()
		return nil, err
	}
	if err = netns.Set(target); err != nil {
		_ = target.Close()
		_ = origin.Close()
		runtime.UnlockOSThread()
		return nil, err
	}
	_ = target.Close()
	return func() {
		if e := netns.Set(origin); e != nil {
			logger.Warnf("restore network namespace: %v", e)
		}
		_ = origin.Close()
		runtime.UnlockOSThread()
	}, nil
}
