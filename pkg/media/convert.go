package media

import "context"

// MediaSource identifies caller-supplied media fed into the reverse audio
// path.
type MediaSource struct {
	URL      string
	MimeType string
}

// EncodeTarget tells a Converter what the encoder process must produce:
// RTP of the negotiated audio codec, sent to RemoteAddr.
type EncodeTarget struct {
	Codec      CodecInfo
	RemoteAddr string
}

// Pipeline is a spawnable encoder-pipeline description.
type Pipeline struct {
	Path string
	Args []string
}

// Converter turns source media into an encoder pipeline for the given
// target. Implementations that cannot produce the target codec return an
// error.
type Converter interface {
	Convert(ctx context.Context, source MediaSource, target EncodeTarget) (*Pipeline, error)
}
