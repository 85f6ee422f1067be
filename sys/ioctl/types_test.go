package ioctl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaInfoString(t *testing.T) {
	tests := []struct {
		media MediaInfo
		want  string
	}{
		{MediaInfo{Port: "TP", SpeedMbps: 1000, Duplex: "full"}, "TP 1000Mb/s full"},
		{MediaInfo{Port: "FIBRE", SpeedMbps: 10000, Duplex: "full"}, "FIBRE 10000Mb/s full"},
		{MediaInfo{Port: "TP", SpeedMbps: 10, Duplex: "half"}, "TP 10Mb/s half"},
		{MediaInfo{Port: "TP"}, "TP (unknown speed)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.media.String())
	}
}
