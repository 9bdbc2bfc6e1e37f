package media

import (
	"strings"
	"testing"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/mock"
	"github.com/pion/sdp/v3"
	"github.com/stretchr/testify/require"
)

func requireAttr(t *testing.T, m *sdp.MediaDescription, key, want string) {
	t.Helper()
	for _, a := range m.Attributes {
		if a.Key == key && a.Value == want {
			return
		}
	}
	t.Fatalf("attribute %s:%s not found", key, want)
}

func TestBuildSinkDescription(t *testing.T) {
	answer := mock.Answer("trackID=0", "trackID=1")
	bindings, err := ResolveTrackBindings(answer)
	require.NoError(t, err)

	out, err := BuildSinkDescription(answer, bindings)
	require.NoError(t, err)

	var desc sdp.SessionDescription
	require.NoError(t, desc.Unmarshal([]byte(out)))
	require.Len(t, desc.MediaDescriptions, 2)

	audio := desc.MediaDescriptions[0]
	require.Equal(t, "audio", audio.MediaName.Media)
	require.Equal(t, []string{"RTP", "AVP"}, audio.MediaName.Protos)
	require.Equal(t, []string{"111"}, audio.MediaName.Formats)
	requireAttr(t, audio, "control", "trackID=0")
	requireAttr(t, audio, "rtpmap", "111 opus/48000/2")

	video := desc.MediaDescriptions[1]
	require.Equal(t, "video", video.MediaName.Media)
	requireAttr(t, video, "control", "trackID=1")
	requireAttr(t, video, "rtpmap", "102 H264/90000")

	require.NotNil(t, desc.ConnectionInformation)
	require.Equal(t, "127.0.0.1", desc.ConnectionInformation.Address.Address)

	require.False(t, strings.Contains(out, "ice-ufrag"))
	require.False(t, strings.Contains(out, "fingerprint"))
	require.False(t, strings.Contains(out, "candidate"))
}

func TestBuildSinkDescriptionSynthesizedControl(t *testing.T) {
	answer := mock.Answer("", "")
	bindings, err := ResolveTrackBindings(answer)
	require.NoError(t, err)

	out, err := BuildSinkDescription(answer, bindings)
	require.NoError(t, err)

	var desc sdp.SessionDescription
	require.NoError(t, desc.Unmarshal([]byte(out)))
	requireAttr(t, desc.MediaDescriptions[0], "control", "trackID=0")
	requireAttr(t, desc.MediaDescriptions[1], "control", "trackID=1")
}

func TestBuildSinkDescriptionMissingBinding(t *testing.T) {
	answer := mock.AnswerNoVideo()
	bindings := map[TrackKind]*TrackBinding{
		TrackKindAudio: {Kind: TrackKindAudio, ChannelID: "trackID=0"},
	}
	_, err := BuildSinkDescription(answer, bindings)
	var trErr *TrackResolutionError
	require.ErrorAs(t, err, &trErr)
	require.Equal(t, TrackKindVideo, trErr.Kind)
}
