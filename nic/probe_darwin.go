package nic

import (
	"fmt"
	"net"
	"strings"
	"time"

	gocmd "github.com/go-cmd/cmd"
	"github.com/kisun-bit/ifprobe/sys/ioctl"
	"github.com/kisun-bit/ifprobe/util/logger"
	"github.com/pkg/errors"
	gopsnet "github.com/shirou/gopsutil/v3/net"
	"github.com/thoas/go-funk"
	"github.com/tidwall/gjson"
)

const profilerTimeout = 10 * time.Second

// darwinProbe 基于getifaddrs(经gopsutil)枚举 + BSD ioctl逐项查询的实现.
// darwin侧无ethtool等价物, 驱动/PCI/verbose级字段恒缺失, 属预期能力差异.
type darwinProbe struct {
	ifs map[string]gopsnet.InterfaceStat

	// system_profiler耗时较长, 单次采集内只调起一次.
	profilerJSON string
	profilerDone bool
}

// NewProbe 构建当前平台的探测器.
func NewProbe() Probe {
	return &darwinProbe{ifs: make(map[string]gopsnet.InterfaceStat)}
}

func (p *darwinProbe) Enumerate() ([]Handle, error) {
	stats, err := gopsnet.Interfaces()
	if err != nil {
		return nil, errors.Wrap(err, "list interfaces")
	}
	handles := make([]Handle, 0, len(stats))
	seen := make([]string, 0, len(stats))
	for _, st := range stats {
		if st.Name == "" || funk.InStrings(seen, st.Name) {
			continue
		}
		seen = append(seen, st.Name)
		p.ifs[st.Name] = st
		handles = append(handles, Handle{Name: st.Name, Index: st.Index})
	}
	return handles, nil
}

func (p *darwinProbe) Extract(h Handle, verbose bool) (Record, error) {
	if h.Name == "" {
		return Record{}, errors.New("empty interface name")
	}
	rec := Record{
		Name:  h.Name,
		Flags: make([]string, 0),
		IPv4:  make([]IPv4Addr, 0),
		IPv6:  make([]IPv6Addr, 0),
	}
	st, cached := p.ifs[h.Name]

	sock, err := ioctl.DialInet()
	if err != nil {
		logger.Debugf("ioctl socket unavailable for %s: %v", h.Name, err)
		sock = nil
	} else {
		defer func() { _ = sock.Close() }()
	}

	p.collectFlags(sock, &rec, st, cached)
	linkDetected := p.collectMedia(sock, &rec)
	// 载波不可能挂在管理状态DOWN的接口上.
	rec.LinkUp = linkDetected && rec.Up()

	if cached && st.HardwareAddr != "" {
		rec.MAC = strings.ToLower(st.HardwareAddr)
	}
	if cached {
		p.collectAddrs(&rec, st)
	}

	if sock != nil {
		if mtu, e := sock.MTU(h.Name); e == nil {
			rec.MTU = &mtu
		} else {
			logger.Debugf("no mtu for %s: %v", h.Name, e)
		}
		if metric, e := sock.Metric(h.Name); e == nil {
			rec.Metric = &metric
		} else {
			logger.Debugf("no metric for %s: %v", h.Name, e)
		}
	}
	if rec.MTU == nil && cached && st.MTU > 0 {
		mtu := uint32(st.MTU)
		rec.MTU = &mtu
	}

	rec.Stats = p.countersOf(h.Name)

	// verbose级信息(特性/环/队列)在darwin侧无来源, 保持缺失.
	return rec, nil
}

func (p *darwinProbe) collectFlags(sock *ioctl.InetSocket, rec *Record, st gopsnet.InterfaceStat, cached bool) {
	if sock != nil {
		if raw, e := sock.Flags(rec.Name); e == nil {
			rec.Flags = ioctl.FlagNames(raw)
			return
		} else {
			logger.Debugf("no raw flags for %s: %v", rec.Name, e)
		}
	}
	if !cached {
		return
	}
	// 回退: 标准库标志子集(小写), 统一为大写标志名.
	for _, f := range st.Flags {
		name := strings.ToUpper(f)
		if !funk.InStrings(rec.Flags, name) {
			rec.Flags = append(rec.Flags, name)
		}
	}
}

// collectMedia 采集介质类别与载波状态, 返回载波检测结果.
func (p *darwinProbe) collectMedia(sock *ioctl.InetSocket, rec *Record) bool {
	linkDetected := rec.HasFlag("RUNNING")
	if sock != nil {
		if class, valid, active, e := sock.Media(rec.Name); e == nil {
			if class != "" {
				rec.Media = class
			}
			// 接口不上报载波时回退到RUNNING标志.
			if valid {
				linkDetected = active
			}
		} else {
			logger.Debugf("no media info for %s: %v", rec.Name, e)
		}
	}
	if rec.Media == "" && rec.HasFlag("LOOPBACK") {
		rec.Media = "Loopback"
	}
	if rec.Media == "" {
		rec.Media = p.profilerMedia(rec.Name)
	}
	return linkDetected
}

func (p *darwinProbe) collectAddrs(rec *Record, st gopsnet.InterfaceStat) {
	for _, a := range st.Addrs {
		ip, ipNet, err := net.ParseCIDR(a.Addr)
		if err != nil {
			// 部分地址不携带前缀.
			if ip = net.ParseIP(a.Addr); ip == nil {
				logger.Debugf("malformed address %q on %s", a.Addr, rec.Name)
				continue
			}
			ipNet = nil
		}
		if v4 := ip.To4(); v4 != nil {
			addr := IPv4Addr{Address: v4.String()}
			if ipNet != nil {
				addr.Prefix, _ = ipNet.Mask.Size()
				addr.Netmask = net.IP(ipNet.Mask).String()
			}
			rec.IPv4 = append(rec.IPv4, addr)
			continue
		}
		addr := IPv6Addr{Address: ip.String(), Scope: ipv6Scope(ip)}
		if ipNet != nil {
			addr.Prefix, _ = ipNet.Mask.Size()
		}
		rec.IPv6 = append(rec.IPv6, addr)
	}
}

func (p *darwinProbe) countersOf(ifName string) Stats {
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

// profilerMedia 经system_profiler查询接口的硬件类别.
// 示例: "Ethernet"、"AirPort"
func (p *darwinProbe) profilerMedia(ifName string) string {
	if !p.profilerDone {
		p.profilerDone = true
		c := gocmd.NewCmd("system_profiler", "SPNetworkDataType", "-json", "-detailLevel", "basic")
		select {
		case status := <-c.Start():
			p.profilerJSON = strings.Join(status.Stdout, "\n")
		case <-time.After(profilerTimeout):
			_ = c.Stop()
			logger.Debugf("system_profiler timed out")
		}
	}
	if p.profilerJSON == "" {
		return ""
	}
	query := fmt.Sprintf(`SPNetworkDataType.#(interface=="%s").hardware`, ifName)
	return gjson.Get(p.profilerJSON, query).String()
}
