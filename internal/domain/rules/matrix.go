package rules

// Matrix is a square coupling matrix. Rows index the receiving variable.
type Matrix [][]float64

// Identity returns an n×n identity matrix.
func Identity(n int) Matrix {
	m := make(Matrix, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	return m
}

// MulVec returns M×v. Missing entries count as zero.
func (m Matrix) MulVec(v []float64) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		sum := 0.0
		for j, a := range row {
			if j < len(v) {
				sum += a * v[j]
			}
		}
		out[i] = sum
	}
	return out
}

// Add bumps entry (i,j) by delta. Out-of-range indices are ignored.
func (m Matrix) Add(i, j int, delta float64) {
	if i < 0 || i >= len(m) || j < 0 || j >= len(m[i]) {
		return
	}
	m[i][j] += delta
}

// Clone returns a deep copy.
func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
