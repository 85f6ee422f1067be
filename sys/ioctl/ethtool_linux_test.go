package ioctl

import (
	"bytes"
	"testing"

	"github.com/lunixbochs/struc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// 请求结构体的打包尺寸必须与内核ABI一致, 否则ioctl会覆写越界.
func TestEthtoolStructSizes(t *testing.T) {
	tests := []struct {
		v    interface{}
		size int
	}{
		{&ethtoolValue{}, 8},
		{&ethtoolCmd{}, 44},
		{&ethtoolRingParam{}, 36},
		{&ethtoolChannels{}, 36},
		{&ethtoolSSetInfo{}, 20},
	}
	for _, tt := range tests {
		var w bytes.Buffer
		require.NoError(t, struc.Pack(&w, tt.v))
		assert.Equal(t, tt.size, w.Len(), "%T", tt.v)
	}
}

func TestEthtoolCmdRoundTrip(t *testing.T) {
	in := ethtoolCmd{Cmd: ethtoolGSet, Speed: 0x2800, SpeedHi: 0x0001, Port: 0x03, Duplex: 0x01}
	var w bytes.Buffer
	require.NoError(t, struc.Pack(&w, &in))

	var out ethtoolCmd
	require.NoError(t, struc.Unpack(bytes.NewReader(w.Bytes()), &out))
	assert.Equal(t, in, out)

	// 高低16位拼接为实际速率.
	assert.Equal(t, uint32(0x12800), uint32(out.Speed)|uint32(out.SpeedHi)<<16)
}

func TestPortAndDuplexNames(t *testing.T) {
	assert.Equal(t, "TP", portName(0x00))
	assert.Equal(t, "FIBRE", portName(0x03))
	assert.Equal(t, "DA", portName(0x05))
	assert.Equal(t, "NONE", portName(0xef))
	assert.Equal(t, "OTHER", portName(0x77))

	assert.Equal(t, "half", duplexName(0x00))
	assert.Equal(t, "full", duplexName(0x01))
	assert.Equal(t, "unknown", duplexName(0xff))
}

func TestShortFeatureName(t *testing.T) {
	assert.Equal(t, "tso", shortFeatureName("tx-tcp-segmentation"))
	assert.Equal(t, "gro", shortFeatureName("rx-gro"))
	assert.Equal(t, "sg", shortFeatureName("tx-scatter-gather"))
	// 未收录的保持内核原名.
	assert.Equal(t, "tx-nocache-copy", shortFeatureName("tx-nocache-copy"))
}

func TestFlagNames(t *testing.T) {
	raw := uint32(unix.IFF_UP | unix.IFF_BROADCAST | unix.IFF_RUNNING | unix.IFF_MULTICAST)
	assert.Equal(t, []string{"UP", "BROADCAST", "RUNNING", "MULTICAST"}, FlagNames(raw))

	assert.Equal(t, []string{"LOOPBACK"}, FlagNames(unix.IFF_LOOPBACK))
	assert.Empty(t, FlagNames(0))
}
