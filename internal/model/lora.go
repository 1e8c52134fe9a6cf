package model

// LowRankDelta is a rank-r decomposition of a weight update: the effective
// weight is W + Scale * B*A, with A (r x cols) and B (rows x r). The base
// matrix is never touched; callers either merge into a shadow copy or add
// rows at call time.
type LowRankDelta struct {
	A     [][]float32 // r x cols
	B     [][]float32 // rows x r
	Scale float32
}

// Rank returns the decomposition rank.
func (d *LowRankDelta) Rank() int { return len(d.A) }

// DeltaRow computes row i of Scale * B*A without materializing the product.
func (d *LowRankDelta) DeltaRow(i int, out []float32) {
	r := d.Rank()
	for j := range out {
		var sum float32
		for k := 0; k < r; k++ {
			sum += d.B[i][k] * d.A[k][j]
		}
		out[j] = d.Scale * sum
	}
}

// AddRow adds row i of the delta onto dst in place.
func (d *LowRankDelta) AddRow(i int, dst []float32) {
	r := d.Rank()
	for j := range dst {
		var sum float32
		for k := 0; k < r; k++ {
			sum += d.B[i][k] * d.A[k][j]
		}
		dst[j] += d.Scale * sum
	}
}

// Merge returns a shadow copy of base with the delta folded in. base is left
// untouched.
func (d *LowRankDelta) Merge(base [][]float32) [][]float32 {
	merged := make([][]float32, len(base))
	for i := range base {
		row := make([]float32, len(base[i]))
		copy(row, base[i])
		d.AddRow(i, row)
		merged[i] = row
	}
	return merged
}
