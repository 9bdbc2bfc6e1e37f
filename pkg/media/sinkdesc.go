package media

import (
	"fmt"
	"time"

	"github.com/pion/sdp/v3"
)

// BuildSinkDescription renders the description the downstream consumer
// sees: loopback addressing, WebRTC transport attributes stripped, one
// audio and one video section each carrying its control attribute. Codec
// mappings are carried over untouched.
func BuildSinkDescription(sdpText string, bindings map[TrackKind]*TrackBinding) (string, error) {
	var src sdp.SessionDescription
	if err := src.Unmarshal([]byte(sdpText)); err != nil {
		return "", fmt.Errorf("parse session description: %w", err)
	}

	sid := uint64(time.Now().Unix())
	out := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      sid,
			SessionVersion: sid,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "127.0.0.1",
		},
		SessionName: "go-rtc-bridge",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: "127.0.0.1"},
		},
		TimeDescriptions: []sdp.TimeDescription{{}},
	}

	for _, kind := range []TrackKind{TrackKindAudio, TrackKindVideo} {
		b := bindings[kind]
		if b == nil {
			return "", &TrackResolutionError{Kind: kind, Count: 0}
		}
		srcSection := findSection(&src, kind)
		if srcSection == nil {
			return "", &TrackResolutionError{Kind: kind, Count: 0}
		}

		m := &sdp.MediaDescription{
			MediaName: sdp.MediaName{
				Media:   string(kind),
				Port:    sdp.RangedPort{Value: 0},
				Protos:  []string{"RTP", "AVP"},
				Formats: srcSection.MediaName.Formats,
			},
		}
		for _, attr := range srcSection.Attributes {
			switch attr.Key {
			case "rtpmap", "fmtp":
				m.Attributes = append(m.Attributes, attr)
			}
		}
		m.Attributes = append(m.Attributes, sdp.Attribute{Key: "control", Value: b.ChannelID})
		out.MediaDescriptions = append(out.MediaDescriptions, m)
	}

	raw, err := out.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal sink description: %w", err)
	}
	return string(raw), nil
}

func findSection(desc *sdp.SessionDescription, kind TrackKind) *sdp.MediaDescription {
	for _, m := range desc.MediaDescriptions {
		if TrackKind(m.MediaName.Media) == kind {
			return m
		}
	}
	return nil
}
