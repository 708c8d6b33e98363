package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// ReadWAVMono decodes a WAV file into a mono float32 waveform and its
// sample rate. Multi-channel audio is downmixed by averaging. PCM16 and
// 32-bit float subtypes are supported, which covers everything the
// transcoder emits.
func ReadWAVMono(path string) ([]float32, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read wav: %w", err)
	}
	return DecodeWAVMono(data)
}

// DecodeWAVMono decodes WAV bytes into a mono float32 waveform and its
// sample rate.
func DecodeWAVMono(data []byte) ([]float32, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: not a RIFF/WAVE file", ErrBadInput)
	}

	var (
		format     uint16
		channels   int
		sampleRate int
		bitDepth   int
		pcm        []byte
	)

	// Walk the chunk list; only fmt and data matter here.
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("%w: truncated fmt chunk", ErrBadInput)
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitDepth = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+size]
		}
		// Chunks are word-aligned.
		offset = body + size + size%2
	}

	if sampleRate <= 0 {
		return nil, 0, fmt.Errorf("%w: invalid sample rate in normalized audio", ErrBadInput)
	}
	if channels <= 0 {
		return nil, 0, fmt.Errorf("%w: invalid channel count", ErrBadInput)
	}
	if pcm == nil {
		return nil, 0, fmt.Errorf("%w: missing data chunk", ErrBadInput)
	}

	var frames []float32
	switch {
	case format == wavFormatPCM && bitDepth == 16:
		frames = decodePCM16(pcm, channels)
	case format == wavFormatFloat && bitDepth == 32:
		frames = decodeFloat32(pcm, channels)
	default:
		return nil, 0, fmt.Errorf("%w: unsupported wav encoding (format %d, %d-bit)", ErrBadInput, format, bitDepth)
	}

	if len(frames) == 0 {
		return nil, 0, fmt.Errorf("%w: audio has no samples after normalization", ErrBadInput)
	}
	return frames, sampleRate, nil
}

func decodePCM16(pcm []byte, channels int) []float32 {
	frameBytes := 2 * channels
	n := len(pcm) / frameBytes
	out := make([]float32, 0, n)
	for i := 0; i < n; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			off := i*frameBytes + ch*2
			v := int16(binary.LittleEndian.Uint16(pcm[off : off+2]))
			sum += float32(v) / 32768.0
		}
		out = append(out, sum/float32(channels))
	}
	return out
}

func decodeFloat32(pcm []byte, channels int) []float32 {
	frameBytes := 4 * channels
	n := len(pcm) / frameBytes
	out := make([]float32, 0, n)
	for i := 0; i < n; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			off := i*frameBytes + ch*4
			bits := binary.LittleEndian.Uint32(pcm[off : off+4])
			sum += math.Float32frombits(bits)
		}
		out = append(out, sum/float32(channels))
	}
	return out
}

// EncodeWAV encodes a mono float32 waveform as a PCM16 WAV byte stream.
// Waveforms peaking above 1.0 are scaled down first so the output never
// clips.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	peak := float32(0)
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	scale := float32(1)
	if peak > 1 {
		scale = 1 / peak
	}

	dataSize := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	for _, s := range samples {
		v := s * scale
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.Write(buf, binary.LittleEndian, int16(v*32767))
	}
	return buf.Bytes()
}
