package ioctl

import "fmt"

// DriverInfo ethtool GDRVINFO结果.
type DriverInfo struct {
	// Driver 驱动名称.
	// 示例: ixgbe
	Driver string `json:"driver"`

	// Version 驱动版本.
	// 示例: 5.15.0-generic
	Version string `json:"version"`

	// BusInfo 总线信息.
	// 示例: 0000:05:00.0
	BusInfo string `json:"bus_info"`

	// FirmwareVersion 固件版本.
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

// MediaInfo 链路介质信息.
type MediaInfo struct {
	// Port 端口类型.
	// 示例: TP
	Port string `json:"port"`

	// SpeedMbps 速率(Mb/s). 0表示未知.
	SpeedMbps uint32 `json:"speed_mbps"`

	// Duplex 双工模式. full/half/unknown.
	Duplex string `json:"duplex"`
}

// String 渲染为人类可读介质描述.
// 示例: "TP 1000Mb/s full"、"TP (unknown speed)"
func (m MediaInfo) String() string {
	if m.SpeedMbps == 0 {
		return fmt.Sprintf("%s (unknown speed)", m.Port)
	}
	return fmt.Sprintf("%s %dMb/s %s", m.Port, m.SpeedMbps, m.Duplex)
}

// RingParam ethtool GRINGPARAM结果(当前生效值).
type RingParam struct {
	RX uint32 `json:"rx"`
	TX uint32 `json:"tx"`
}

// ChannelParam ethtool GCHANNELS结果(当前生效值).
type ChannelParam struct {
	RX       uint32 `json:"rx"`
	TX       uint32 `json:"tx"`
	Other    uint32 `json:"other"`
	Combined uint32 `json:"combined"`
}

// Feature 网卡卸载特性及其开关状态.
type Feature struct {
	Name   string
	Active bool
}
