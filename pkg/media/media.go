package media

import (
	"fmt"
	"strings"

	"github.com/pixelbender/go-sdp/sdp"
)

type DescriptionType string

const (
	DescriptionTypeOffer    DescriptionType = "offer"
	DescriptionTypeAnswer   DescriptionType = "answer"
	DescriptionTypePranswer DescriptionType = "pranswer"
	DescriptionTypeRollback DescriptionType = "rollback"
)

// Description is the offer/answer payload exchanged over a signaling
// channel.
type Description struct {
	Type DescriptionType `json:"type"`
	SDP  string          `json:"sdp"`
}

func (d *Description) Parse() (*sdp.Session, error) {
	return sdp.Parse([]byte(d.SDP))
}

type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

type Direction string

const (
	DirectionSendRecv Direction = "sendrecv"
	DirectionSendOnly Direction = "sendonly"
	DirectionRecvOnly Direction = "recvonly"
	DirectionInactive Direction = "inactive"
)

func (d Direction) SendCapable() bool {
	return d == DirectionSendRecv || d == DirectionSendOnly
}

// CodecInfo is one negotiated RTP payload mapping.
type CodecInfo struct {
	Kind        TrackKind
	Name        string
	PayloadType uint8
	ClockRate   uint32
	Channels    uint16
	Fmtp        string
}

// MimeType renders the codec as kind/name, e.g. audio/opus.
func (c *CodecInfo) MimeType() string {
	return fmt.Sprintf("%s/%s", c.Kind, c.Name)
}

func (c *CodecInfo) String() string {
	if c.Channels > 0 {
		return fmt.Sprintf("%s/%d/%d", c.Name, c.ClockRate, c.Channels)
	}
	return fmt.Sprintf("%s/%d", c.Name, c.ClockRate)
}

// DescribeCodecs summarizes the first payload mapping of each media
// section, for logs.
func DescribeCodecs(sdpText string) string {
	sess, err := sdp.Parse([]byte(sdpText))
	if err != nil {
		return ""
	}
	var parts []string
	for _, m := range sess.Media {
		if len(m.Format) == 0 {
			parts = append(parts, m.Type)
			continue
		}
		f := m.Format[0]
		parts = append(parts, fmt.Sprintf("%s:%s/%d", m.Type, f.Name, f.ClockRate))
	}
	return strings.Join(parts, " ")
}
