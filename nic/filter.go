package nic

import "strings"

// Query 快照过滤条件. 各谓词组之间取逻辑与, 关键词组内取逻辑或.
// IncludeDown与Verbose作用于快照构建阶段, 过滤阶段不使用.
type Query struct {
	IncludeDown bool
	Verbose     bool

	// IPv4Only/IPv6Only 地址族谓词. 两者同时为true时命中任一族即可.
	IPv4Only bool
	IPv6Only bool

	// RunningOnly 仅保留载波UP的接口.
	RunningOnly bool

	// IgnoreCase 关键词匹配忽略大小写. 默认按原始字节比较.
	IgnoreCase bool

	// Keywords 关键词列表, 空列表不构成约束.
	Keywords []string
}

// Apply 纯函数式过滤: 不修改记录, 保持原相对顺序, 幂等.
func (q Query) Apply(snap Snapshot) Snapshot {
	out := snap
	out.Records = make([]Record, 0, len(snap.Records))
	for _, rec := range snap.Records {
		if q.Matches(rec) {
			out.Records = append(out.Records, rec)
		}
	}
	return out
}

// Matches 判断单条记录是否满足全部生效谓词.
func (q Query) Matches(rec Record) bool {
	if q.RunningOnly && !rec.LinkUp {
		return false
	}
	if q.IPv4Only || q.IPv6Only {
		hasFamily := (q.IPv4Only && len(rec.IPv4) > 0) || (q.IPv6Only && len(rec.IPv6) > 0)
		if !hasFamily {
			return false
		}
	}
	if len(q.Keywords) == 0 {
		return true
	}
	for _, keyword := range q.Keywords {
		if q.matchKeyword(keyword, rec) {
			return true
		}
	}
	return false
}

// matchKeyword 对记录的全部文本面做子串匹配. 缺失字段直接跳过,
// 既不命中也不报错.
func (q Query) matchKeyword(keyword string, rec Record) bool {
	if q.IgnoreCase {
		keyword = strings.ToLower(keyword)
	}
	for _, target := range q.textTargets(rec) {
		if target == "" {
			continue
		}
		if q.IgnoreCase {
			target = strings.ToLower(target)
		}
		if strings.Contains(target, keyword) {
			return true
		}
	}
	return false
}

func (q Query) textTargets(rec Record) []string {
	targets := make([]string, 0, 16)
	targets = append(targets,
		rec.Name,
		rec.Media,
		rec.MAC,
		rec.DriverName,
		rec.DriverVersion,
		rec.BusInfo,
		rec.PCIAddress,
		rec.VendorName,
		rec.DeviceName,
	)
	targets = append(targets, rec.Flags...)
	for _, a := range rec.IPv4 {
		targets = append(targets, a.Address)
	}
	for _, a := range rec.IPv6 {
		targets = append(targets, a.Address)
	}
	return targets
}
