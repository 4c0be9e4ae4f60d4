package audio

import (
	"errors"
	"mime"
	"strings"
	"time"
)

// ErrUnsupported is returned for content types this package cannot describe.
var ErrUnsupported = errors.New("audio: unsupported content type")

// assumedMP3Bitrate is used to estimate MP3 duration without decoding frames.
const assumedMP3Bitrate = 128_000

// IsAudioContentType reports whether ct names an audio media type. An
// "application/octet-stream" type is accepted since storage buckets commonly
// serve audio that way.
func IsAudioContentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "audio/") || mt == "application/octet-stream"
}

// EstimateDuration returns the playback length of a file of the given
// content type. head must hold at least the first bytes of the file; total is
// the full length in bytes, or -1 when unknown.
//
// WAV durations come from the header. MP3 durations assume a constant
// 128 kbit/s bitrate. Other types yield [ErrUnsupported].
func EstimateDuration(contentType string, head []byte, total int64) (time.Duration, error) {
	mt, _, _ := mime.ParseMediaType(contentType)
	switch {
	case isWAV(mt) || (mt == "application/octet-stream" && len(head) >= 4 && string(head[0:4]) == "RIFF"):
		info, err := ParseWAV(head)
		if err != nil {
			return 0, err
		}
		return info.Duration(), nil
	case mt == "audio/mpeg" || mt == "audio/mp3":
		if total <= 0 {
			return 0, errors.New("audio: mp3 length unknown")
		}
		return time.Duration(total * 8 * int64(time.Second) / assumedMP3Bitrate), nil
	}
	return 0, ErrUnsupported
}

func isWAV(mt string) bool {
	switch mt {
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		return true
	}
	return false
}
