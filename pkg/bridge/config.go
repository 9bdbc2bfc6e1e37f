package bridge

import (
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/rtp"
)

// CodecConfig is one payload the bridge offers to the peer.
type CodecConfig struct {
	Kind        string `mapstructure:"kind" json:"kind"`
	MimeType    string `mapstructure:"mime_type" json:"mime_type"`
	PayloadType uint8  `mapstructure:"payload_type" json:"payload_type"`
	ClockRate   uint32 `mapstructure:"clock_rate" json:"clock_rate"`
	Channels    uint16 `mapstructure:"channels" json:"channels"`
	FmtpLine    string `mapstructure:"fmtp_line" json:"fmtp_line"`
}

// Config carries the knobs a deployment tunes per bridge.
type Config struct {
	Codecs []CodecConfig `mapstructure:"codecs"`

	ICEServers []webrtc.ICEServer `mapstructure:"ice_servers"`
	ICELite    bool               `mapstructure:"ice_lite"`
	NAT1To1IPs []string           `mapstructure:"nat1to1"`

	// Ephemeral port range for ICE agents, both zero means unrestricted.
	ICEPortMin uint16 `mapstructure:"ice_port_min"`
	ICEPortMax uint16 `mapstructure:"ice_port_max"`

	// UDPMuxPortMin > 0 multiplexes all ICE traffic over a single UDP
	// socket picked from [UDPMuxPortMin, UDPMuxPortMax].
	UDPMuxPortMin int `mapstructure:"udp_mux_port_min"`
	UDPMuxPortMax int `mapstructure:"udp_mux_port_max"`

	// GatherTimeout bounds the wait for candidate gathering when the
	// channel does not trickle.
	GatherTimeout time.Duration `mapstructure:"gather_timeout"`

	// KeyframeInterval is the period between keyframe requests toward
	// the peer once video is flowing.
	KeyframeInterval time.Duration `mapstructure:"keyframe_interval"`

	// SinkScheme names the streaming protocol of the loopback endpoint.
	SinkScheme string `mapstructure:"sink_scheme"`

	// SinkQueueSize bounds the per-session outbound frame queue.
	SinkQueueSize int `mapstructure:"sink_queue_size"`

	// Port range the intercom RTP ingest listens on.
	IntercomPortMin int `mapstructure:"intercom_port_min"`
	IntercomPortMax int `mapstructure:"intercom_port_max"`
}

// DefaultConfig answers Opus audio and H264 video, the payloads every
// mainstream peer implementation ships.
func DefaultConfig() Config {
	return Config{
		Codecs: []CodecConfig{
			{
				Kind:        "audio",
				MimeType:    webrtc.MimeTypeOpus,
				PayloadType: 111,
				ClockRate:   48000,
				Channels:    2,
				FmtpLine:    "minptime=10;useinbandfec=1",
			},
			{
				Kind:        "video",
				MimeType:    webrtc.MimeTypeH264,
				PayloadType: 102,
				ClockRate:   90000,
				FmtpLine:    "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f",
			},
		},
		GatherTimeout:    5 * time.Second,
		KeyframeInterval: 4 * time.Second,
		SinkScheme:       "rtsp",
		SinkQueueSize:    512,
		IntercomPortMin:  rtp.DefaultPortMin,
		IntercomPortMax:  rtp.DefaultPortMax,
	}
}

// withDefaults fills the zero values an embedder left unset.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if len(c.Codecs) == 0 {
		c.Codecs = def.Codecs
	}
	if c.GatherTimeout <= 0 {
		c.GatherTimeout = def.GatherTimeout
	}
	if c.KeyframeInterval <= 0 {
		c.KeyframeInterval = def.KeyframeInterval
	}
	if c.SinkScheme == "" {
		c.SinkScheme = def.SinkScheme
	}
	if c.SinkQueueSize <= 0 {
		c.SinkQueueSize = def.SinkQueueSize
	}
	if c.IntercomPortMin <= 0 || c.IntercomPortMax <= 0 {
		c.IntercomPortMin = def.IntercomPortMin
		c.IntercomPortMax = def.IntercomPortMax
	}
	return c
}
