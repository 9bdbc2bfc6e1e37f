package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	require.Equal(t, "rtsp", cfg.SinkScheme)
	require.Equal(t, 512, cfg.SinkQueueSize)
	require.Equal(t, 4*time.Second, cfg.KeyframeInterval)
	require.Equal(t, 5*time.Second, cfg.GatherTimeout)
	require.NotZero(t, cfg.IntercomPortMin)
	require.Len(t, cfg.Codecs, 2)
	require.Equal(t, uint8(111), cfg.Codecs[0].PayloadType)
	require.Equal(t, "video", cfg.Codecs[1].Kind)
}

func TestConfigKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		SinkScheme:       "rtp",
		KeyframeInterval: time.Second,
		SinkQueueSize:    16,
	}.withDefaults()
	require.Equal(t, "rtp", cfg.SinkScheme)
	require.Equal(t, time.Second, cfg.KeyframeInterval)
	require.Equal(t, 16, cfg.SinkQueueSize)
}
