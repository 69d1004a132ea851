package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeWAV wraps raw single-channel PCM in a RIFF/WAVE container so it can
// be shipped to transcription backends that refuse headerless audio.
func EncodeWAV(pcm []byte, encodingInfo EncodingInfo) ([]byte, error) {
	if encodingInfo.Format != EncodingLinear16 {
		return nil, fmt.Errorf("unsupported wav source format: %s", encodingInfo.Format.Name())
	}
	if encodingInfo.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", encodingInfo.SampleRate)
	}

	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := encodingInfo.SampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := &bytes.Buffer{}
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(encodingInfo.SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// DecodeWAV extracts single-channel 16-bit PCM from a RIFF/WAVE container.
// Chunks other than fmt and data are skipped.
func DecodeWAV(wav []byte) ([]byte, EncodingInfo, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, EncodingInfo{}, fmt.Errorf("not a RIFF/WAVE container")
	}

	encodingInfo := EncodingInfo{}
	offset := 12
	var pcm []byte
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))
		body := wav[offset+8:]
		if chunkSize > len(body) {
			chunkSize = len(body)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, EncodingInfo{}, fmt.Errorf("malformed fmt chunk")
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			channels := binary.LittleEndian.Uint16(body[2:4])
			bitsPerSample := binary.LittleEndian.Uint16(body[14:16])
			if format != 1 || channels != 1 || bitsPerSample != 16 {
				return nil, EncodingInfo{}, fmt.Errorf("unsupported wav layout: format=%d channels=%d bits=%d", format, channels, bitsPerSample)
			}
			encodingInfo.Format = EncodingLinear16
			encodingInfo.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
		case "data":
			pcm = body[:chunkSize]
		}

		// Chunks are word aligned.
		offset += 8 + chunkSize + chunkSize%2
	}

	if encodingInfo.SampleRate == 0 || pcm == nil {
		return nil, EncodingInfo{}, fmt.Errorf("missing fmt or data chunk")
	}
	return pcm, encodingInfo, nil
}
