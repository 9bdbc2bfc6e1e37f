package mock

import (
	"strings"
	"time"

	"github.com/pixelbender/go-sdp/sdp"
)

const (
	iceUfrag    = "mockUfrag"
	icePwd      = "mockPwdMockPwdMockPwd00"
	fingerprint = "sha-256 8F:47:33:0A:EA:D4:58:D2:5B:9A:C3:21:07:6C:5E:12:FA:4B:00:9D:D1:6E:2A:73:C8:55:91:3F:B0:64:E7:1C"
)

func audioSection(control string, mid string) []string {
	lines := []string{
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"c=IN IP4 0.0.0.0",
		"a=rtcp:9 IN IP4 0.0.0.0",
		"a=ice-ufrag:" + iceUfrag,
		"a=ice-pwd:" + icePwd,
		"a=fingerprint:" + fingerprint,
		"a=setup:active",
		"a=mid:" + mid,
		"a=sendrecv",
		"a=rtcp-mux",
		"a=rtpmap:111 opus/48000/2",
		"a=fmtp:111 minptime=10;useinbandfec=1",
	}
	if control != "" {
		lines = append(lines, "a=control:"+control)
	}
	return lines
}

func videoSection(control string, mid string) []string {
	lines := []string{
		"m=video 9 UDP/TLS/RTP/SAVPF 102",
		"c=IN IP4 0.0.0.0",
		"a=rtcp:9 IN IP4 0.0.0.0",
		"a=ice-ufrag:" + iceUfrag,
		"a=ice-pwd:" + icePwd,
		"a=fingerprint:" + fingerprint,
		"a=setup:active",
		"a=mid:" + mid,
		"a=sendonly",
		"a=rtcp-mux",
		"a=rtpmap:102 H264/90000",
		"a=fmtp:102 level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f",
	}
	if control != "" {
		lines = append(lines, "a=control:"+control)
	}
	return lines
}

func session(bundle string, sections ...[]string) string {
	lines := []string{
		"v=0",
		"o=- 163927 2 IN IP4 127.0.0.1",
		"s=-",
		"t=0 0",
		"a=group:BUNDLE " + bundle,
		"a=msid-semantic: WMS",
	}
	for _, s := range sections {
		lines = append(lines, s...)
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

// Answer returns a WebRTC-style answer with one audio and one video
// section. An empty control string omits that section's control attribute.
func Answer(audioControl, videoControl string) string {
	return session("0 1", audioSection(audioControl, "0"), videoSection(videoControl, "1"))
}

// AnswerNoVideo returns an answer carrying only an audio section.
func AnswerNoVideo() string {
	return session("0", audioSection("trackID=0", "0"))
}

// AnswerTwoAudio returns an answer with a duplicated audio section.
func AnswerTwoAudio() string {
	return session("0 1 2",
		audioSection("trackID=0", "0"),
		audioSection("trackID=1", "1"),
		videoSection("trackID=2", "2"))
}

// AnswerWithData returns an answer that also negotiates a data channel
// section.
func AnswerWithData(audioControl, videoControl string) string {
	data := []string{
		"m=application 9 UDP/DTLS/SCTP webrtc-datachannel",
		"c=IN IP4 0.0.0.0",
		"a=ice-ufrag:" + iceUfrag,
		"a=ice-pwd:" + icePwd,
		"a=fingerprint:" + fingerprint,
		"a=setup:active",
		"a=mid:2",
		"a=sctp-port:5000",
	}
	return session("0 1 2",
		audioSection(audioControl, "0"),
		videoSection(videoControl, "1"),
		data)
}

// Offer returns a WebRTC-style remote offer announcing one sendrecv audio
// and one sendonly video track, the shape a doorbell or camera sends.
func Offer() string {
	sdpText := session("0 1",
		audioSection("", "0"),
		videoSection("", "1"))
	return strings.Replace(sdpText, "a=setup:active", "a=setup:actpass", -1)
}

// PlainAudioSession returns a minimal plain-RTP audio session, handy for
// codec summary tests.
func PlainAudioSession() *sdp.Session {
	host := "127.0.0.1"
	return &sdp.Session{
		Origin: &sdp.Origin{
			Username:       "-",
			Address:        host,
			SessionID:      time.Now().UnixNano() / 1e6,
			SessionVersion: time.Now().UnixNano() / 1e6,
		},
		Timing:     &sdp.Timing{Start: time.Time{}, Stop: time.Time{}},
		Connection: &sdp.Connection{Address: host},
		Media: []*sdp.Media{
			{
				Connection: []*sdp.Connection{{Address: host}},
				Mode:       sdp.SendRecv,
				Type:       "audio",
				Port:       4008,
				Proto:      "RTP/AVP",
				Format: []*sdp.Format{
					{Payload: 0, Name: "PCMU", ClockRate: 8000},
					{Payload: 8, Name: "PCMA", ClockRate: 8000},
				},
			},
		},
	}
}
