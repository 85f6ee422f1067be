package nic

import (
	"runtime"
	"time"

	"github.com/kisun-bit/ifprobe/util/logger"
	"github.com/pkg/errors"
	"github.com/tidwall/sjson"
)

// Snapshot 一次采集得到的有序接口记录集合, 构建后只读.
// 记录顺序为平台原生枚举序, 不排序、不去重.
type Snapshot struct {
	Records []Record  `json:"interfaces"`
	TakenAt time.Time `json:"taken_at"`
	GOOS    string    `json:"goos"`
}

// Builder 驱动Probe产出快照.
type Builder struct {
	probe   Probe
	verbose bool
}

// NewBuilder 构建当前平台的快照构建器. verbose为true时采集ethtool扩展信息.
func NewBuilder(verbose bool) *Builder {
	return NewBuilderWithProbe(NewProbe(), verbose)
}

func NewBuilderWithProbe(p Probe, verbose bool) *Builder {
	return &Builder{probe: p, verbose: verbose}
}

// Build 采集当前主机的接口快照.
// includeDown为false时剔除管理状态DOWN或载波DOWN的接口; 为true时全量保留.
// 仅枚举失败会返回错误(EnumerationError), 单接口提取失败只做降级.
func (b *Builder) Build(includeDown bool) (Snapshot, error) {
	handles, err := b.probe.Enumerate()
	if err != nil {
		return Snapshot{}, &EnumerationError{Cause: err}
	}

	snap := Snapshot{
		Records: make([]Record, 0, len(handles)),
		TakenAt: time.Now(),
		GOOS:    runtime.GOOS,
	}
	for _, h := range handles {
		rec, e := b.probe.Extract(h, b.verbose)
		if e != nil {
			logger.Debugf("skip interface %s: %v", h.Name, e)
			continue
		}
		if !includeDown && (!rec.Up() || !rec.LinkUp) {
			continue
		}
		snap.Records = append(snap.Records, rec)
	}
	return snap, nil
}

// JSON 导出快照. 逐键组装, 保证缺失字段不以哨兵值出现.
func (s Snapshot) JSON() (string, error) {
	j := "{}"
	var err error
	if j, err = sjson.Set(j, "goos", s.GOOS); err != nil {
		return "", errors.Wrap(err, "set goos")
	}
	if j, err = sjson.Set(j, "taken_at", s.TakenAt.Format(time.RFC3339)); err != nil {
		return "", errors.Wrap(err, "set taken_at")
	}
	if j, err = sjson.Set(j, "total", len(s.Records)); err != nil {
		return "", errors.Wrap(err, "set total")
	}
	if j, err = sjson.Set(j, "interfaces", s.Records); err != nil {
		return "", errors.Wrap(err, "set interfaces")
	}
	return j, nil
}
