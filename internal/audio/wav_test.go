package audio

import (
	"errors"
	"math"
	"testing"
)

func TestWAVEncodeDecodeRoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.25, -1, 1}
	data := EncodeWAV(samples, RecognitionSampleRate)

	decoded, rate, err := DecodeWAVMono(data)
	if err != nil {
		t.Fatalf("DecodeWAVMono: %v", err)
	}
	if rate != RecognitionSampleRate {
		t.Fatalf("rate = %d, want %d", rate, RecognitionSampleRate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("len = %d, want %d", len(decoded), len(samples))
	}
	for i := range samples {
		if math.Abs(float64(decoded[i]-samples[i])) > 1.0/32767 {
			t.Fatalf("sample %d = %v, want ~%v", i, decoded[i], samples[i])
		}
	}
}

func TestEncodeWAVScalesDownClippingWaveforms(t *testing.T) {
	data := EncodeWAV([]float32{2, -2, 1}, ReferenceSampleRate)

	decoded, _, err := DecodeWAVMono(data)
	if err != nil {
		t.Fatalf("DecodeWAVMono: %v", err)
	}
	// Peak of 2 scales everything by half.
	if math.Abs(float64(decoded[0])-1) > 0.001 {
		t.Fatalf("decoded[0] = %v, want ~1", decoded[0])
	}
	if math.Abs(float64(decoded[2])-0.5) > 0.001 {
		t.Fatalf("decoded[2] = %v, want ~0.5", decoded[2])
	}
}

func TestDecodeWAVMonoDownmixesStereo(t *testing.T) {
	// Two-channel PCM16 with frames (0.5, -0.5) and (1, 0).
	data := stereoPCM16(8000, [][2]float32{{0.5, -0.5}, {1, 0}})
	decoded, rate, err := DecodeWAVMono(data)
	if err != nil {
		t.Fatalf("DecodeWAVMono: %v", err)
	}
	if rate != 8000 {
		t.Fatalf("rate = %d, want 8000", rate)
	}
	if math.Abs(float64(decoded[0])) > 0.001 {
		t.Fatalf("decoded[0] = %v, want ~0", decoded[0])
	}
	if math.Abs(float64(decoded[1])-0.5) > 0.001 {
		t.Fatalf("decoded[1] = %v, want ~0.5", decoded[1])
	}
}

func TestDecodeWAVMonoRejectsGarbage(t *testing.T) {
	_, _, err := DecodeWAVMono([]byte("definitely not audio"))
	if !errors.Is(err, ErrBadInput) {
		t.Fatalf("err = %v, want ErrBadInput", err)
	}
}

func TestDecodeWAVMonoRejectsMissingData(t *testing.T) {
	data := EncodeWAV([]float32{0.1}, 16000)
	// Corrupt the data chunk id so the decoder never finds it.
	copy(data[36:40], "junk")

	_, _, err := DecodeWAVMono(data)
	if !errors.Is(err, ErrBadInput) {
		t.Fatalf("err = %v, want ErrBadInput", err)
	}
}

func stereoPCM16(rate int, frames [][2]float32) []byte {
	dataSize := len(frames) * 4
	out := make([]byte, 0, 44+dataSize)
	put16 := func(v uint16) { out = append(out, byte(v), byte(v>>8)) }
	put32 := func(v uint32) {
		out = append(out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}

	out = append(out, "RIFF"...)
	put32(uint32(36 + dataSize))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	put32(16)
	put16(1) // PCM
	put16(2) // stereo
	put32(uint32(rate))
	put32(uint32(rate * 4))
	put16(4)
	put16(16)
	out = append(out, "data"...)
	put32(uint32(dataSize))
	for _, f := range frames {
		put16(uint16(int16(f[0] * 32767)))
		put16(uint16(int16(f[1] * 32767)))
	}
	return out
}
