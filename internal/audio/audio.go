// Package audio provides input device capture and raw PCM block analysis
// for the mic check monitor. It accumulates S16LE stereo sample blocks into
// per-channel loudness statistics; the metering pipeline consumes the
// resulting dB readings.
package audio

import (
	"encoding/binary"
	"math"
)

// Capture format constants. Every platform backend is configured to deliver
// this format on stdout.
const (
	// SampleRate is the capture sample rate in Hz.
	SampleRate = 48000
	// Channels is the capture channel count.
	Channels = 2
	// BytesPerFrame is the size of one stereo S16LE frame.
	BytesPerFrame = 4
	// MinDB is the minimum dB level (silence).
	MinDB = -60.0
	// MaxSampleValue is the maximum absolute value for 16-bit signed audio.
	MaxSampleValue = 32768.0
	// ClipThreshold is slightly below full scale to catch near-clips.
	ClipThreshold int16 = 32760
)

// BlockStats accumulates raw sample data for one analysis block. Zero value
// is ready to use; call Reset between blocks.
type BlockStats struct {
	sumSquaresL float64
	sumSquaresR float64
	peakL       float64
	peakR       float64
	clipL       int
	clipR       int
	frames      int
}

// AddS16LE folds n bytes of S16LE stereo PCM into the block statistics.
func (s *BlockStats) AddS16LE(buf []byte, n int) {
	for i := 0; i+BytesPerFrame-1 < n; i += BytesPerFrame {
		leftSample := int16(binary.LittleEndian.Uint16(buf[i:]))
		rightSample := int16(binary.LittleEndian.Uint16(buf[i+2:]))
		left := float64(leftSample)
		right := float64(rightSample)

		s.sumSquaresL += left * left
		s.sumSquaresR += right * right

		if abs := math.Abs(left); abs > s.peakL {
			s.peakL = abs
		}
		if abs := math.Abs(right); abs > s.peakR {
			s.peakR = abs
		}

		if leftSample >= ClipThreshold || leftSample <= -ClipThreshold {
			s.clipL++
		}
		if rightSample >= ClipThreshold || rightSample <= -ClipThreshold {
			s.clipR++
		}

		s.frames++
	}
}

// Frames returns the number of stereo frames accumulated so far.
func (s *BlockStats) Frames() int {
	return s.frames
}

// Levels contains the dB measurements of one finished block.
type Levels struct {
	RMSLeft   float64
	RMSRight  float64
	PeakLeft  float64
	PeakRight float64
	ClipLeft  int
	ClipRight int
}

// Levels computes RMS and peak dB levels from the accumulated samples.
// An empty block yields the floor on every channel.
func (s *BlockStats) Levels() Levels {
	if s.frames == 0 {
		return Levels{
			RMSLeft: MinDB, RMSRight: MinDB,
			PeakLeft: MinDB, PeakRight: MinDB,
		}
	}

	rmsL := math.Sqrt(s.sumSquaresL / float64(s.frames))
	rmsR := math.Sqrt(s.sumSquaresR / float64(s.frames))

	return Levels{
		RMSLeft:   sampleToDB(rmsL),
		RMSRight:  sampleToDB(rmsR),
		PeakLeft:  sampleToDB(s.peakL),
		PeakRight: sampleToDB(s.peakR),
		ClipLeft:  s.clipL,
		ClipRight: s.clipR,
	}
}

// Reset clears the accumulators for the next block.
func (s *BlockStats) Reset() {
	*s = BlockStats{}
}

// RMSMax returns the hotter channel's RMS level in dB.
func (l Levels) RMSMax() float64 {
	return max(l.RMSLeft, l.RMSRight)
}

// PeakMax returns the hotter channel's peak level in dB.
func (l Levels) PeakMax() float64 {
	return max(l.PeakLeft, l.PeakRight)
}

// Clipped reports whether any sample in the block hit the clip threshold.
func (l Levels) Clipped() bool {
	return l.ClipLeft > 0 || l.ClipRight > 0
}

// sampleToDB converts a 16-bit sample magnitude to dBFS, floor-clamped.
func sampleToDB(v float64) float64 {
	if v <= 0 {
		return MinDB
	}
	return max(20*math.Log10(v/MaxSampleValue), MinDB)
}
