package nic

import (
	"github.com/elliotchance/orderedmap/v2"
	"github.com/kisun-bit/ifprobe/sys/ioctl"
	"github.com/pkg/errors"
	"github.com/thoas/go-funk"
	"github.com/tidwall/sjson"
)

// Handle 平台侧接口句柄, 仅承载定位一个接口所需的最小信息.
type Handle struct {
	// Name 接口名.
	// 示例: eth0
	Name string

	// Namespace Linux具名网络命名空间, 根命名空间及darwin侧恒为空.
	Namespace string

	// Index 内核接口序号.
	Index int
}

// Record 单个网络接口的平台无关快照记录. 构建完成后只读.
//
// 可选字段约定: 字符串空值即"平台未提供"; 数值型可选字段用指针表达缺失,
// 避免0值与"未知"混淆(计数器除外, Stats字段缺省即为0).
type Record struct {
	// Name 接口名, 快照内非空且唯一(命名空间内).
	Name string `json:"name"`

	// Namespace Linux具名网络命名空间.
	Namespace string `json:"namespace,omitempty"`

	// Flags 标准接口标志名集合, 按位序排列, 无重复.
	// 示例: [UP BROADCAST RUNNING MULTICAST]
	Flags []string `json:"flags"`

	// LinkUp 物理/逻辑载波状态. 为true时UP标志必然存在.
	LinkUp bool `json:"link_up"`

	// MAC 硬件地址, 小写冒号分隔.
	// 示例: 00:1b:44:11:3a:b7
	MAC string `json:"mac_address,omitempty"`

	// IPv4 地址列表, 保持内核枚举序.
	IPv4 []IPv4Addr `json:"ipv4_addresses"`

	// IPv6 地址列表, 保持内核枚举序.
	IPv6 []IPv6Addr `json:"ipv6_addresses"`

	// Media 介质类别描述, 两平台词表不要求统一.
	// 示例: "TP 1000Mb/s full"(linux)、"Ethernet"(darwin)
	Media string `json:"media_type,omitempty"`

	// DriverName/DriverVersion/BusInfo 来自ethtool, darwin侧缺失.
	DriverName    string `json:"driver_name,omitempty"`
	DriverVersion string `json:"driver_version,omitempty"`
	BusInfo       string `json:"bus_info,omitempty"`

	// PCIAddress 规整后的PCI地址.
	// 示例: 0000:05:00.0
	PCIAddress string `json:"pci_address,omitempty"`

	// VendorName/DeviceName 由本地pci.ids解析, 未命中即缺失.
	VendorName string `json:"vendor_name,omitempty"`
	DeviceName string `json:"device_name,omitempty"`

	// MTU 最大传输单元.
	MTU *uint32 `json:"mtu,omitempty"`

	// Metric 路由度量值.
	Metric *uint32 `json:"metric,omitempty"`

	// Stats 流量计数器, 自接口创建起单调递增, 查询失败时保持0.
	Stats Stats `json:"stats"`

	// Verbose ethtool扩展信息, 仅linux侧verbose探测时存在.
	Verbose *Verbose `json:"verbose,omitempty"`
}

// HasFlag 判断标志名是否存在.
func (r Record) HasFlag(name string) bool {
	return funk.InStrings(r.Flags, name)
}

// Up 管理状态是否为UP. 注意与LinkUp(载波状态)相区分.
func (r Record) Up() bool {
	return r.HasFlag("UP")
}

// IPv4Addr IPv4地址及其掩码.
type IPv4Addr struct {
	// Address 示例: 192.168.1.5
	Address string `json:"address"`

	// Netmask 示例: 255.255.255.0
	Netmask string `json:"netmask,omitempty"`

	// Prefix 前缀长度. 示例: 24
	Prefix int `json:"prefix"`
}

// IPv6Addr IPv6地址及其前缀、作用域.
type IPv6Addr struct {
	// Address 示例: fe80::1
	Address string `json:"address"`

	// Prefix 前缀长度. 示例: 64
	Prefix int `json:"prefix"`

	// Scope host/link/site/global/multicast.
	Scope string `json:"scope,omitempty"`
}

// Stats 流量计数器. 平台未提供的项保持0, 不省略.
type Stats struct {
	RxBytes   uint64 `json:"rx_bytes"`
	TxBytes   uint64 `json:"tx_bytes"`
	RxPackets uint64 `json:"rx_packets"`
	TxPackets uint64 `json:"tx_packets"`
}

// Verbose ethtool扩展信息(特性、环大小、队列数).
type Verbose struct {
	Features *FeatureSet         `json:"features,omitempty"`
	Rings    *ioctl.RingParam    `json:"rings,omitempty"`
	Channels *ioctl.ChannelParam `json:"channels,omitempty"`
}

// FeatureSet 具名布尔特性集合, 保持内核位序.
type FeatureSet struct {
	m *orderedmap.OrderedMap[string, bool]
}

func NewFeatureSet() *FeatureSet {
	return &FeatureSet{m: orderedmap.NewOrderedMap[string, bool]()}
}

func (fs *FeatureSet) Set(name string, active bool) {
	fs.m.Set(name, active)
}

func (fs *FeatureSet) Get(name string) (active, ok bool) {
	return fs.m.Get(name)
}

func (fs *FeatureSet) Len() int {
	return fs.m.Len()
}

// Active 返回所有处于开启状态的特性名, 保持插入序.
func (fs *FeatureSet) Active() []string {
	names := make([]string, 0, fs.m.Len())
	for el := fs.m.Front(); el != nil; el = el.Next() {
		if el.Value {
			names = append(names, el.Key)
		}
	}
	return names
}

// MarshalJSON 按插入序输出为JSON对象.
func (fs *FeatureSet) MarshalJSON() ([]byte, error) {
	j := "{}"
	var err error
	for el := fs.m.Front(); el != nil; el = el.Next() {
		if j, err = sjson.Set(j, escapeJSONPath(el.Key), el.Value); err != nil {
			return nil, errors.Wrapf(err, "marshal feature %s", el.Key)
		}
	}
	return []byte(j), nil
}

// escapeJSONPath 转义sjson路径分隔符, 防止特性名中的点号被解释为层级.
func escapeJSONPath(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		if key[i] == '.' || key[i] == '*' || key[i] == '?' || key[i] == '|' || key[i] == '#' || key[i] == '@' {
			out = append(out, '\\')
		}
		out = append(out, key[i])
	}
	return string(out)
}
