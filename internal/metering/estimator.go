package metering

import "math"

// Estimate is the instantaneous loudness of one sample block.
type Estimate struct {
	RMS    float64 // linear RMS in [0, 1]
	RMSDB  float64 // RMS in dBFS, floor-clamped
	PeakDB float64 // largest absolute sample in dBFS, floor-clamped
}

// EstimateBlock computes RMS and peak loudness over a block of samples
// normalized to [-1, 1]. Empty and all-zero blocks yield the floor; the
// result is never NaN or infinite. Pure function, no state.
func EstimateBlock(block []float64) Estimate {
	if len(block) == 0 {
		return Estimate{RMSDB: FloorDB, PeakDB: FloorDB}
	}

	var sumSquares, peak float64
	for _, s := range block {
		sumSquares += s * s
		if abs := math.Abs(s); abs > peak {
			peak = abs
		}
	}

	rms := math.Sqrt(sumSquares / float64(len(block)))
	return Estimate{
		RMS:    rms,
		RMSDB:  LinearToDB(rms),
		PeakDB: LinearToDB(peak),
	}
}

// LinearToDB converts a linear amplitude in [0, 1] to dBFS, floor-clamped.
func LinearToDB(v float64) float64 {
	if v <= 0 {
		return FloorDB
	}
	return clampFloor(20 * math.Log10(v))
}

// BlockFromCentered renormalizes byte samples centered on 128 (unsigned
// time-domain data) to [-1, 1].
func BlockFromCentered(bytes []byte) []float64 {
	block := make([]float64, len(bytes))
	for i, b := range bytes {
		block[i] = (float64(b) - 128.0) / 128.0
	}
	return block
}

// BlockFromMagnitude renormalizes byte magnitudes in [0, 255] to [0, 1].
func BlockFromMagnitude(bytes []byte) []float64 {
	block := make([]float64, len(bytes))
	for i, b := range bytes {
		block[i] = float64(b) / 255.0
	}
	return block
}
