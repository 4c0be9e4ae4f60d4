// Package audio provides container-level helpers for the audio the pipeline
// stores and plays: wrapping raw PCM into WAV, reading WAV headers back, and
// estimating playback duration from a container's metadata.
//
// No sample data is decoded or transcoded here.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrNotWAV is returned by [ParseWAV] when the data is not a RIFF/WAVE container.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE container")

// WAVInfo holds the format metadata extracted from a RIFF/WAVE header.
type WAVInfo struct {
	DataOffset    int // byte offset of the first PCM sample
	DataSize      int // length of the data chunk in bytes
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Duration returns the playback length described by the header.
func (w WAVInfo) Duration() time.Duration {
	bytesPerSecond := w.SampleRate * w.Channels * w.BitsPerSample / 8
	if bytesPerSecond <= 0 {
		return 0
	}
	return time.Duration(int64(w.DataSize) * int64(time.Second) / int64(bytesPerSecond))
}

// EncodeWAV wraps little-endian 16-bit PCM in a minimal 44-byte WAV header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const headerSize = 44
	out := make([]byte, headerSize+len(pcm))
	blockAlign := channels * 2

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // sub-chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], 16)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[headerSize:], pcm)
	return out
}

// ParseWAV walks the RIFF chunks in wav and returns the format of the "fmt "
// chunk and the location of the "data" chunk. The fmt chunk size may vary, so
// chunks are walked instead of assuming a fixed 44-byte header.
//
// Only the header needs to be present: a data chunk whose declared size runs
// past the end of wav is accepted, so the function works on a prefix of a
// larger stream.
func ParseWAV(wav []byte) (WAVInfo, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return WAVInfo{}, ErrNotWAV
	}

	var info WAVInfo
	foundFmt := false

	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || offset+8+16 > len(wav) {
				return WAVInfo{}, fmt.Errorf("audio: truncated fmt chunk (%d bytes)", chunkSize)
			}
			fmtData := wav[offset+8:]
			info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(fmtData[14:16]))
			foundFmt = true
		case "data":
			if !foundFmt {
				return WAVInfo{}, errors.New("audio: data chunk precedes fmt chunk")
			}
			info.DataOffset = offset + 8
			info.DataSize = chunkSize
			return info, nil
		}

		// Chunks are word-aligned: pad by 1 if odd size.
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return WAVInfo{}, errors.New("audio: missing data chunk")
}
