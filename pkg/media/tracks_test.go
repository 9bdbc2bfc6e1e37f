package media

import (
	"testing"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/mock"
	"github.com/stretchr/testify/require"
)

func TestResolveTrackBindings(t *testing.T) {
	bindings, err := ResolveTrackBindings(mock.Answer("trackID=0", "trackID=1"))
	require.NoError(t, err)
	require.Len(t, bindings, 2)

	audio := bindings[TrackKindAudio]
	require.NotNil(t, audio)
	require.Equal(t, "trackID=0", audio.ChannelID)
	require.NotNil(t, audio.Codec)
	require.Equal(t, "opus", audio.Codec.Name)
	require.Equal(t, uint8(111), audio.Codec.PayloadType)
	require.Equal(t, uint32(48000), audio.Codec.ClockRate)
	require.Equal(t, uint16(2), audio.Codec.Channels)
	require.Equal(t, "minptime=10;useinbandfec=1", audio.Codec.Fmtp)

	video := bindings[TrackKindVideo]
	require.NotNil(t, video)
	require.Equal(t, "trackID=1", video.ChannelID)
	require.Equal(t, "H264", video.Codec.Name)
	require.Equal(t, uint32(90000), video.Codec.ClockRate)
}

func TestResolveSynthesizesChannelIDs(t *testing.T) {
	bindings, err := ResolveTrackBindings(mock.Answer("", ""))
	require.NoError(t, err)
	require.Equal(t, "trackID=0", bindings[TrackKindAudio].ChannelID)
	require.Equal(t, "trackID=1", bindings[TrackKindVideo].ChannelID)
}

func TestResolveMissingVideo(t *testing.T) {
	_, err := ResolveTrackBindings(mock.AnswerNoVideo())
	var trErr *TrackResolutionError
	require.ErrorAs(t, err, &trErr)
	require.Equal(t, TrackKindVideo, trErr.Kind)
	require.Equal(t, 0, trErr.Count)
}

func TestResolveDuplicateAudio(t *testing.T) {
	_, err := ResolveTrackBindings(mock.AnswerTwoAudio())
	var trErr *TrackResolutionError
	require.ErrorAs(t, err, &trErr)
	require.Equal(t, TrackKindAudio, trErr.Kind)
	require.Equal(t, 2, trErr.Count)
}

func TestResolveIgnoresDataSections(t *testing.T) {
	bindings, err := ResolveTrackBindings(mock.AnswerWithData("trackID=0", "trackID=1"))
	require.NoError(t, err)
	require.Len(t, bindings, 2)
	require.Equal(t, "trackID=0", bindings[TrackKindAudio].ChannelID)
	require.Equal(t, "trackID=1", bindings[TrackKindVideo].ChannelID)
}

func TestResolveRejectsGarbage(t *testing.T) {
	_, err := ResolveTrackBindings("this is not a session description")
	require.Error(t, err)
}
