package nic

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// fakeProbe 以预置记录充当平台探测器.
type fakeProbe struct {
	records  []Record
	enumErr  error
	failures map[string]error
}

func (f *fakeProbe) Enumerate() ([]Handle, error) {
	if f.enumErr != nil {
		return nil, f.enumErr
	}
	handles := make([]Handle, 0, len(f.records))
	for i, rec := range f.records {
		handles = append(handles, Handle{Name: rec.Name, Namespace: rec.Namespace, Index: i + 1})
	}
	return handles, nil
}

func (f *fakeProbe) Extract(h Handle, _ bool) (Record, error) {
	if err, ok := f.failures[h.Name]; ok {
		return Record{}, err
	}
	for _, rec := range f.records {
		if rec.Name == h.Name && rec.Namespace == h.Namespace {
			return rec, nil
		}
	}
	return Record{}, errors.Errorf("unknown interface %s", h.Name)
}

func fakeRecords() []Record {
	mtu := uint32(1500)
	return []Record{
		{
			Name:   "eth0",
			Flags:  []string{"UP", "BROADCAST", "RUNNING", "MULTICAST"},
			LinkUp: true,
			MAC:    "00:1b:44:11:3a:b7",
			IPv4:   []IPv4Addr{{Address: "192.168.1.5", Netmask: "255.255.255.0", Prefix: 24}},
			IPv6:   []IPv6Addr{},
			MTU:    &mtu,
			Stats:  Stats{RxBytes: 1024, TxBytes: 2048, RxPackets: 10, TxPackets: 20},
		},
		{
			Name:  "eth1",
			Flags: []string{"BROADCAST", "MULTICAST"},
			IPv4:  []IPv4Addr{},
			IPv6:  []IPv6Addr{},
		},
		{
			Name:   "lo",
			Flags:  []string{"UP", "LOOPBACK", "RUNNING"},
			LinkUp: true,
			IPv4:   []IPv4Addr{{Address: "127.0.0.1", Netmask: "255.0.0.0", Prefix: 8}},
			IPv6:   []IPv6Addr{{Address: "::1", Prefix: 128, Scope: "host"}},
		},
	}
}

func TestBuildSnapshot(t *testing.T) {
	b := NewBuilderWithProbe(&fakeProbe{records: fakeRecords()}, false)

	snap, err := b.Build(true)
	require.NoError(t, err)
	assert.Equal(t, []string{"eth0", "eth1", "lo"}, names(snap))
	assert.False(t, snap.TakenAt.IsZero())
	assert.NotEmpty(t, snap.GOOS)

	// 命名空间内接口名唯一且非空.
	seen := make(map[string]bool)
	for _, rec := range snap.Records {
		require.NotEmpty(t, rec.Name)
		key := rec.Namespace + "/" + rec.Name
		assert.False(t, seen[key], "duplicate interface %s", key)
		seen[key] = true
	}
}

// 载波UP的记录管理状态必然UP.
func TestBuildLinkUpImpliesUp(t *testing.T) {
	b := NewBuilderWithProbe(&fakeProbe{records: fakeRecords()}, false)
	snap, err := b.Build(true)
	require.NoError(t, err)
	for _, rec := range snap.Records {
		if rec.LinkUp {
			assert.True(t, rec.Up(), "interface %s", rec.Name)
		}
	}
}

// 默认可见集是全量集的子集, 仅剔除记录, 不改动记录内容.
func TestBuildDefaultVisibility(t *testing.T) {
	p := &fakeProbe{records: fakeRecords()}

	all, err := NewBuilderWithProbe(p, false).Build(true)
	require.NoError(t, err)
	visible, err := NewBuilderWithProbe(p, false).Build(false)
	require.NoError(t, err)

	assert.Equal(t, []string{"eth0", "lo"}, names(visible))
	for _, rec := range visible.Records {
		assert.Contains(t, all.Records, rec)
	}
}

func TestBuildEnumerationFailure(t *testing.T) {
	cause := errors.New("netlink: permission denied")
	b := NewBuilderWithProbe(&fakeProbe{enumErr: cause}, false)

	_, err := b.Build(true)
	require.Error(t, err)
	assert.True(t, IsEnumerationError(err))
	assert.ErrorIs(t, err, cause)
}

// 单接口提取失败只跳过该接口, 不影响其余记录.
func TestBuildSkipsFailedExtract(t *testing.T) {
	p := &fakeProbe{
		records:  fakeRecords(),
		failures: map[string]error{"eth1": errors.New("device vanished")},
	}
	snap, err := NewBuilderWithProbe(p, false).Build(true)
	require.NoError(t, err)
	assert.Equal(t, []string{"eth0", "lo"}, names(snap))
}

func TestSnapshotJSON(t *testing.T) {
	b := NewBuilderWithProbe(&fakeProbe{records: fakeRecords()}, false)
	snap, err := b.Build(true)
	require.NoError(t, err)

	j, err := snap.JSON()
	require.NoError(t, err)
	require.True(t, gjson.Valid(j))

	assert.Equal(t, int64(3), gjson.Get(j, "total").Int())
	assert.Equal(t, "eth0", gjson.Get(j, "interfaces.0.name").String())
	assert.Equal(t, int64(1500), gjson.Get(j, "interfaces.0.mtu").Int())
	assert.Equal(t, "192.168.1.5", gjson.Get(j, "interfaces.0.ipv4_addresses.0.address").String())
	assert.Equal(t, int64(1024), gjson.Get(j, "interfaces.0.stats.rx_bytes").Int())

	// 缺失字段不得以哨兵值出现.
	assert.False(t, gjson.Get(j, "interfaces.1.mtu").Exists())
	assert.False(t, gjson.Get(j, "interfaces.1.mac_address").Exists())
	assert.False(t, gjson.Get(j, "interfaces.1.verbose").Exists())

	// 计数器字段恒存在, 缺省为0.
	assert.True(t, gjson.Get(j, "interfaces.1.stats.rx_bytes").Exists())
}
