package nic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		GOOS: "linux",
		Records: []Record{
			{
				Name:   "eth0",
				Flags:  []string{"UP", "BROADCAST", "RUNNING", "MULTICAST"},
				LinkUp: true,
				MAC:    "00:1b:44:11:3a:b7",
				IPv4: []IPv4Addr{
					{Address: "192.168.1.5", Netmask: "255.255.255.0", Prefix: 24},
				},
				IPv6: []IPv6Addr{
					{Address: "fe80::21b:44ff:fe11:3ab7", Prefix: 64, Scope: "link"},
				},
				Media:      "TP 1000Mb/s full",
				DriverName: "e1000e",
				PCIAddress: "0000:05:00.0",
				VendorName: "Intel Corporation",
			},
			{
				Name:   "lo",
				Flags:  []string{"UP", "LOOPBACK", "RUNNING"},
				LinkUp: true,
				IPv4: []IPv4Addr{
					{Address: "127.0.0.1", Netmask: "255.0.0.0", Prefix: 8},
				},
				IPv6: []IPv6Addr{
					{Address: "::1", Prefix: 128, Scope: "host"},
				},
			},
			{
				Name:  "eth1",
				Flags: []string{"BROADCAST", "MULTICAST"},
				MAC:   "52:54:00:aa:bb:cc",
				IPv4:  []IPv4Addr{},
				IPv6:  []IPv6Addr{},
			},
			{
				Name:   "wlan0",
				Flags:  []string{"UP", "BROADCAST", "RUNNING", "MULTICAST"},
				LinkUp: true,
				MAC:    "d8:3a:dd:01:02:03",
				IPv4:   []IPv4Addr{},
				IPv6: []IPv6Addr{
					{Address: "fe80::da3a:ddff:fe01:203", Prefix: 64, Scope: "link"},
				},
				DriverName: "iwlwifi",
			},
		},
	}
}

func names(snap Snapshot) []string {
	out := make([]string, 0, len(snap.Records))
	for _, rec := range snap.Records {
		out = append(out, rec.Name)
	}
	return out
}

// 空Query不构成任何约束, 过滤结果应与输入完全一致.
func TestApplyIdentity(t *testing.T) {
	snap := sampleSnapshot()
	got := Query{}.Apply(snap)
	assert.Equal(t, snap.Records, got.Records)
}

func TestApplyIdempotent(t *testing.T) {
	snap := sampleSnapshot()
	q := Query{RunningOnly: true, Keywords: []string{"eth"}}
	once := q.Apply(snap)
	twice := q.Apply(once)
	assert.Equal(t, once.Records, twice.Records)
}

func TestApplyPreservesOrder(t *testing.T) {
	snap := sampleSnapshot()
	got := Query{Keywords: []string{"eth", "lo"}}.Apply(snap)
	assert.Equal(t, []string{"eth0", "lo", "eth1", "wlan0"}, names(got))
}

func TestFamilyPredicates(t *testing.T) {
	snap := sampleSnapshot()

	v4 := Query{IPv4Only: true}.Apply(snap)
	assert.Equal(t, []string{"eth0", "lo"}, names(v4))

	v6 := Query{IPv6Only: true}.Apply(snap)
	assert.Equal(t, []string{"eth0", "lo", "wlan0"}, names(v6))

	// 两个族谓词同时生效时, 命中任一族即可.
	both := Query{IPv4Only: true, IPv6Only: true}.Apply(snap)
	assert.Equal(t, []string{"eth0", "lo", "wlan0"}, names(both))
}

func TestRunningOnly(t *testing.T) {
	snap := sampleSnapshot()
	got := Query{RunningOnly: true}.Apply(snap)
	assert.Equal(t, []string{"eth0", "lo", "wlan0"}, names(got))
}

func TestKeywordOrSemantics(t *testing.T) {
	snap := sampleSnapshot()

	// 组内任一关键词命中即保留.
	got := Query{Keywords: []string{"iwlwifi", "LOOPBACK"}}.Apply(snap)
	assert.Equal(t, []string{"lo", "wlan0"}, names(got))

	// 无命中则为空, 而非错误.
	none := Query{Keywords: []string{"does-not-exist"}}.Apply(snap)
	require.NotNil(t, none.Records)
	assert.Empty(t, none.Records)
}

func TestKeywordTargets(t *testing.T) {
	snap := sampleSnapshot()

	tests := []struct {
		keyword string
		want    []string
	}{
		{"192.168.1", []string{"eth0"}},       // IPv4地址
		{"fe80::", []string{"eth0", "wlan0"}}, // IPv6地址
		{"00:1b:44", []string{"eth0"}},        // MAC
		{"1000Mb/s", []string{"eth0"}},        // 介质描述
		{"0000:05:00", []string{"eth0"}},      // PCI地址
		{"Intel", []string{"eth0"}},           // 厂商名
		{"LOOPBACK", []string{"lo"}},          // 标志名
	}
	for _, tt := range tests {
		got := Query{Keywords: []string{tt.keyword}}.Apply(snap)
		assert.Equal(t, tt.want, names(got), "keyword %q", tt.keyword)
	}
}

func TestKeywordCaseModes(t *testing.T) {
	snap := sampleSnapshot()

	// 默认大小写敏感.
	got := Query{Keywords: []string{"ETH0"}}.Apply(snap)
	assert.Empty(t, got.Records)

	// 忽略大小写后, 关键词与目标文本同时折叠, 匹配结果与大小写组合无关.
	for _, kw := range []string{"ETH0", "eth0", "Eth0"} {
		got = Query{IgnoreCase: true, Keywords: []string{kw}}.Apply(snap)
		assert.Equal(t, []string{"eth0"}, names(got), "keyword %q", kw)
	}
}

// 缺失字段(空串)不参与匹配: 空关键词也不会借空字段误命中全部记录.
func TestAbsentFieldsNeverMatch(t *testing.T) {
	snap := sampleSnapshot()
	got := Query{Keywords: []string{"e1000e"}}.Apply(snap)
	assert.Equal(t, []string{"eth0"}, names(got))
}

// 驱动名缺失的记录上, 关键词可以落在其他已填字段, 缺失字段既不命中
// 也不阻断评估.
func TestKeywordOnRecordWithAbsentDriver(t *testing.T) {
	snap := Snapshot{Records: []Record{{
		Name:  "en0",
		Flags: []string{"UP", "BROADCAST", "RUNNING"},
		MAC:   "ac:de:48:00:11:22",
		IPv4:  []IPv4Addr{{Address: "10.0.0.2", Prefix: 24}},
		IPv6:  []IPv6Addr{},
	}}}

	got := Query{Keywords: []string{"ixgbe"}}.Apply(snap)
	assert.Empty(t, got.Records)

	got = Query{Keywords: []string{"ixgbe", "ac:de:48"}}.Apply(snap)
	assert.Equal(t, []string{"en0"}, names(got))
}

func TestPredicateGroupsAnd(t *testing.T) {
	snap := sampleSnapshot()

	// 谓词组之间取与: RUNNING且有IPv4且命中关键词.
	got := Query{RunningOnly: true, IPv4Only: true, Keywords: []string{"eth"}}.Apply(snap)
	assert.Equal(t, []string{"eth0"}, names(got))
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	snap := sampleSnapshot()
	want := names(snap)
	_ = Query{RunningOnly: true, Keywords: []string{"eth"}}.Apply(snap)
	assert.Equal(t, want, names(snap))
}
