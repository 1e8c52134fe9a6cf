package model

import (
	"math"
	"testing"
)

func testDelta() *LowRankDelta {
	return &LowRankDelta{
		A:     [][]float32{{1, 0, -1}, {0, 2, 0}},
		B:     [][]float32{{1, 1}, {0, 1}, {2, 0}},
		Scale: 0.5,
	}
}

func TestDeltaRowMatchesAddRow(t *testing.T) {
	d := testDelta()
	row := make([]float32, 3)
	d.DeltaRow(0, row)
	sum := []float32{10, 20, 30}
	d.AddRow(0, sum)
	for j := range row {
		want := []float32{10, 20, 30}[j] + row[j]
		if math.Abs(float64(sum[j]-want)) > 1e-6 {
			t.Fatalf("row %d: got %v want %v", j, sum[j], want)
		}
	}
}

func TestMergeLeavesBaseUntouched(t *testing.T) {
	d := testDelta()
	base := [][]float32{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	orig := [][]float32{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	merged := d.Merge(base)
	for i := range base {
		for j := range base[i] {
			if base[i][j] != orig[i][j] {
				t.Fatalf("base mutated at %d,%d", i, j)
			}
		}
	}
	// merged == base + delta, row by row
	for i := range base {
		row := make([]float32, 3)
		d.DeltaRow(i, row)
		for j := range row {
			want := base[i][j] + row[j]
			if math.Abs(float64(merged[i][j]-want)) > 1e-6 {
				t.Fatalf("merged[%d][%d]=%v want %v", i, j, merged[i][j], want)
			}
		}
	}
}

func TestDeltaRowValues(t *testing.T) {
	d := testDelta()
	// B[2] = [2,0] -> row 2 of B*A = 2*A[0] = [2,0,-2]; scaled by 0.5 -> [1,0,-1]
	row := make([]float32, 3)
	d.DeltaRow(2, row)
	want := []float32{1, 0, -1}
	for j := range want {
		if math.Abs(float64(row[j]-want[j])) > 1e-6 {
			t.Fatalf("row[%d]=%v want %v", j, row[j], want[j])
		}
	}
}
