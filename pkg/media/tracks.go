package media

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// TrackBinding ties one media kind to the sink channel its packets are
// forwarded on.
type TrackBinding struct {
	Kind      TrackKind
	ChannelID string
	Codec     *CodecInfo
}

// TrackResolutionError reports a description whose media sections cannot be
// mapped onto exactly one audio and one video track.
type TrackResolutionError struct {
	Kind  TrackKind
	Count int
}

func (e *TrackResolutionError) Error() string {
	return fmt.Sprintf("track resolution: expected exactly one %s section, found %d", e.Kind, e.Count)
}

// ResolveTrackBindings maps the audio and video sections of a negotiated
// description onto sink channels. The channel identifier is the section's
// control attribute; a section without one gets trackID=<n>, n counting
// audio and video sections in order of appearance.
func ResolveTrackBindings(sdpText string) (map[TrackKind]*TrackBinding, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(sdpText)); err != nil {
		return nil, fmt.Errorf("parse session description: %w", err)
	}

	counts := make(map[TrackKind]int)
	bindings := make(map[TrackKind]*TrackBinding)
	index := 0
	for _, m := range desc.MediaDescriptions {
		kind := TrackKind(m.MediaName.Media)
		if kind != TrackKindAudio && kind != TrackKindVideo {
			continue
		}
		counts[kind]++
		if counts[kind] > 1 {
			index++
			continue
		}

		b := &TrackBinding{
			Kind:      kind,
			ChannelID: fmt.Sprintf("trackID=%d", index),
			Codec:     sectionCodec(kind, m),
		}
		for _, attr := range m.Attributes {
			if attr.Key == "control" && attr.Value != "" {
				b.ChannelID = attr.Value
			}
		}
		bindings[kind] = b
		index++
	}

	for _, kind := range []TrackKind{TrackKindAudio, TrackKindVideo} {
		if counts[kind] != 1 {
			return nil, &TrackResolutionError{Kind: kind, Count: counts[kind]}
		}
	}
	return bindings, nil
}

// sectionCodec extracts the first payload mapping of a media section.
func sectionCodec(kind TrackKind, m *sdp.MediaDescription) *CodecInfo {
	if len(m.MediaName.Formats) == 0 {
		return nil
	}
	payload := m.MediaName.Formats[0]
	pt, err := strconv.ParseUint(payload, 10, 8)
	if err != nil {
		return nil
	}

	info := &CodecInfo{Kind: kind, PayloadType: uint8(pt)}
	for _, attr := range m.Attributes {
		switch attr.Key {
		case "rtpmap":
			fields := strings.SplitN(attr.Value, " ", 2)
			if len(fields) != 2 || fields[0] != payload {
				continue
			}
			parts := strings.Split(fields[1], "/")
			info.Name = parts[0]
			if len(parts) > 1 {
				if v, err := strconv.ParseUint(parts[1], 10, 32); err == nil {
					info.ClockRate = uint32(v)
				}
			}
			if len(parts) > 2 {
				if v, err := strconv.ParseUint(parts[2], 10, 16); err == nil {
					info.Channels = uint16(v)
				}
			}
		case "fmtp":
			fields := strings.SplitN(attr.Value, " ", 2)
			if len(fields) == 2 && fields[0] == payload {
				info.Fmtp = fields[1]
			}
		}
	}
	if info.Name == "" {
		// static payload types have no rtpmap; 0 and 8 are the common ones
		switch pt {
		case 0:
			info.Name, info.ClockRate, info.Channels = "PCMU", 8000, 1
		case 8:
			info.Name, info.ClockRate, info.Channels = "PCMA", 8000, 1
		default:
			return nil
		}
	}
	return info
}
