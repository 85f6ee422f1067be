package nic

import (
	"net"

	"github.com/pkg/errors"
)

// Probe 单一平台的探测能力: 枚举接口句柄, 再按句柄提取记录.
// 两级失败语义:
//  1. Enumerate失败属致命错误, 本次采集作废;
//  2. Extract内部的单项属性查询失败一律吸收为字段缺失, 仅在接口身份
//     都无法确认时才返回错误(该记录被跳过, 不影响其他记录).
type Probe interface {
	Enumerate() ([]Handle, error)
	Extract(h Handle, verbose bool) (Record, error)
}

// EnumerationError 平台无法列举接口(权限或内核设施不可用), 致命.
type EnumerationError struct {
	Cause error
}

func (e *EnumerationError) Error() string {
	return "enumerate network interfaces: " + e.Cause.Error()
}

func (e *EnumerationError) Unwrap() error {
	return e.Cause
}

// IsEnumerationError 判断错误链中是否存在致命的枚举失败.
func IsEnumerationError(err error) bool {
	var ee *EnumerationError
	return errors.As(err, &ee)
}

// ipv6Scope 依地址类别推导IPv6作用域.
func ipv6Scope(ip net.IP) string {
	v6 := ip.To16()
	switch {
	case ip.IsLoopback():
		return "host"
	case ip.IsLinkLocalUnicast():
		return "link"
	case v6 != nil && v6[0] == 0xfe && v6[1]&0xc0 == 0xc0:
		return "site"
	case ip.IsMulticast():
		return "multicast"
	default:
		return "global"
	}
}
