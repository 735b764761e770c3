package saliency

import "gonum.org/v1/gonum/mat"

// Mask круглая маска области мозга. Центр всегда в центре карты,
// это геометрическая эвристика, а не сегментация: сигнал у краёв снимка отсекается.
type Mask struct {
	Rows   int
	Cols   int
	CX     int // центр по X (столбец)
	CY     int // центр по Y (строка)
	Radius int
	inside []bool
}

// CircularMask строит маску rows×cols: радиус = min(cols/2, rows/2) - margin.
// Отрицательный радиус прижимается к нулю, в маске остаётся только центр.
func CircularMask(rows, cols, margin int) *Mask {
	cx, cy := cols/2, rows/2
	radius := minInt(cx, cy) - margin
	if radius < 0 {
		radius = 0
	}

	m := &Mask{
		Rows:   rows,
		Cols:   cols,
		CX:     cx,
		CY:     cy,
		Radius: radius,
		inside: make([]bool, rows*cols),
	}
	r2 := radius * radius
	for y := 0; y < rows; y++ {
		dy := y - cy
		for x := 0; x < cols; x++ {
			dx := x - cx
			m.inside[y*cols+x] = dx*dx+dy*dy <= r2
		}
	}
	return m
}

// Contains сообщает, лежит ли пиксель (строка r, столбец c) внутри маски.
func (m *Mask) Contains(r, c int) bool {
	return m.inside[r*m.Cols+c]
}

// Count число пикселей внутри маски.
func (m *Mask) Count() int {
	n := 0
	for _, in := range m.inside {
		if in {
			n++
		}
	}
	return n
}

// Apply обнуляет значения вне маски.
func (m *Mask) Apply(d *mat.Dense) {
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			if !m.Contains(r, c) {
				d.Set(r, c, 0)
			}
		}
	}
}

// Values значения внутри маски в порядке обхода строк.
func (m *Mask) Values(d *mat.Dense) []float64 {
	out := make([]float64, 0, m.Count())
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			if m.Contains(r, c) {
				out = append(out, d.At(r, c))
			}
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
