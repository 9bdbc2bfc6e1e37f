package media

import (
	"testing"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/mock"
	"github.com/stretchr/testify/require"
)

func TestDirectionSendCapable(t *testing.T) {
	require.True(t, DirectionSendRecv.SendCapable())
	require.True(t, DirectionSendOnly.SendCapable())
	require.False(t, DirectionRecvOnly.SendCapable())
	require.False(t, DirectionInactive.SendCapable())
}

func TestCodecInfoString(t *testing.T) {
	opus := &CodecInfo{Kind: TrackKindAudio, Name: "opus", ClockRate: 48000, Channels: 2}
	require.Equal(t, "opus/48000/2", opus.String())
	require.Equal(t, "audio/opus", opus.MimeType())

	h264 := &CodecInfo{Kind: TrackKindVideo, Name: "H264", ClockRate: 90000}
	require.Equal(t, "H264/90000", h264.String())
}

func TestDescribeCodecs(t *testing.T) {
	sess := mock.PlainAudioSession()
	summary := DescribeCodecs(sess.String())
	require.Contains(t, summary, "audio:PCMU/8000")
}

func TestDescriptionParse(t *testing.T) {
	d := &Description{Type: DescriptionTypeAnswer, SDP: mock.Answer("trackID=0", "trackID=1")}
	sess, err := d.Parse()
	require.NoError(t, err)
	require.Len(t, sess.Media, 2)
}
