package solver

import "math"

// Matrix is the pairwise Euclidean distance matrix over depot+customers.
// Travel time is taken to be numerically equal to distance. Built once per
// instance and read-only afterwards.
type Matrix [][]float64

// BuildMatrix computes the full symmetric matrix for the given node list.
func BuildMatrix(nodes []Node) Matrix {
	n := len(nodes)
	m := make(Matrix, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := nodes[i].X - nodes[j].X
			dy := nodes[i].Y - nodes[j].Y
			d := math.Hypot(dx, dy)
			m[i][j] = d
			m[j][i] = d
		}
	}
	return m
}
