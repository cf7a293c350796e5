package audio

import (
	"encoding/binary"
	"math"
)

// Resample converts mono PCM between sample rates by linear
// interpolation. Good enough for speech fed to a recognizer; the
// recognizer and whisper both want 16kHz while USB microphones
// typically capture at 48kHz.
func Resample(in []int16, inRate, outRate int) []int16 {
	if inRate == outRate || len(in) == 0 {
		return in
	}
	ratio := float64(outRate) / float64(inRate)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]int16, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		if i0 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		if i1 >= len(in) {
			out[i] = in[i0]
			continue
		}
		a := src - float64(i0)
		out[i] = int16(float64(in[i0])*(1-a) + float64(in[i1])*a)
	}
	return out
}

// ToFloat32 converts int16 PCM to float32 in [-1, 1].
func ToFloat32(in []int16) []float32 {
	out := make([]float32, len(in))
	const scale = 1.0 / 32768.0
	for i, v := range in {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

// Bytes serializes int16 PCM as little-endian bytes, the layout the
// recognizer consumes.
func Bytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, v := range in {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// RMS returns the root mean square of the samples normalized to [0, 1].
func RMS(in []int16) float64 {
	if len(in) == 0 {
		return 0
	}
	var sum float64
	for _, v := range in {
		f := float64(v) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(in)))
}
