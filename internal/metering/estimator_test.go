package metering

import (
	"math"
	"testing"
)

func sineBlock(amplitude float64, n int) []float64 {
	block := make([]float64, n)
	for i := range block {
		block[i] = amplitude * math.Sin(2*math.Pi*float64(i)/float64(n))
	}
	return block
}

func TestEstimateBlock(t *testing.T) {
	tests := []struct {
		name      string
		block     []float64
		wantRMSDB float64
		tolerance float64
	}{
		{
			name:      "empty block yields floor",
			block:     nil,
			wantRMSDB: FloorDB,
			tolerance: 0,
		},
		{
			name:      "all zero block yields floor",
			block:     make([]float64, 128),
			wantRMSDB: FloorDB,
			tolerance: 0,
		},
		{
			name:      "full scale sine is about -3 dBFS",
			block:     sineBlock(1.0, 4800),
			wantRMSDB: -3.0103,
			tolerance: 0.05,
		},
		{
			name:      "full scale square is 0 dBFS",
			block:     []float64{1, -1, 1, -1, 1, -1, 1, -1},
			wantRMSDB: 0,
			tolerance: 1e-9,
		},
		{
			name:      "half scale sine is about -9 dBFS",
			block:     sineBlock(0.5, 4800),
			wantRMSDB: -9.031,
			tolerance: 0.05,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateBlock(tt.block)
			if math.IsNaN(got.RMSDB) || math.IsInf(got.RMSDB, 0) {
				t.Fatalf("RMSDB = %v, want finite", got.RMSDB)
			}
			if diff := math.Abs(got.RMSDB - tt.wantRMSDB); diff > tt.tolerance {
				t.Errorf("RMSDB = %.4f, want %.4f (±%.4f)", got.RMSDB, tt.wantRMSDB, tt.tolerance)
			}
		})
	}
}

func TestEstimateBlockPeak(t *testing.T) {
	got := EstimateBlock([]float64{0, 0.25, -0.5, 0.1})
	want := 20 * math.Log10(0.5)
	if math.Abs(got.PeakDB-want) > 1e-9 {
		t.Errorf("PeakDB = %.4f, want %.4f", got.PeakDB, want)
	}
}

func TestByteRenormalization(t *testing.T) {
	t.Run("centered silence is floor", func(t *testing.T) {
		bytes := make([]byte, 256)
		for i := range bytes {
			bytes[i] = 128
		}
		got := EstimateBlock(BlockFromCentered(bytes))
		if got.RMSDB != FloorDB {
			t.Errorf("RMSDB = %.2f, want %.2f", got.RMSDB, FloorDB)
		}
	})

	t.Run("centered full swing matches float square wave", func(t *testing.T) {
		centered := EstimateBlock(BlockFromCentered([]byte{0, 0, 0, 0}))
		direct := EstimateBlock([]float64{-1, -1, -1, -1})
		if math.Abs(centered.RMSDB-direct.RMSDB) > 1e-9 {
			t.Errorf("centered RMSDB = %.4f, direct = %.4f", centered.RMSDB, direct.RMSDB)
		}
	})

	t.Run("magnitude form scales to unit range", func(t *testing.T) {
		block := BlockFromMagnitude([]byte{255, 255})
		for _, s := range block {
			if s != 1.0 {
				t.Fatalf("sample = %v, want 1.0", s)
			}
		}
		if got := EstimateBlock(block); math.Abs(got.RMSDB) > 1e-9 {
			t.Errorf("RMSDB = %.4f, want 0", got.RMSDB)
		}
	})
}

func TestLinearToDB(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero clamps to floor", 0, FloorDB},
		{"negative clamps to floor", -0.5, FloorDB},
		{"below floor clamps to floor", 0.0000001, FloorDB},
		{"unity is zero", 1.0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LinearToDB(tt.in); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("LinearToDB(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
