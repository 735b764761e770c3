package saliency

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NormalizeInMask растягивает значения внутри маски в [0,1].
// Если все значения в маске равны, карта не меняется и возвращается false.
func NormalizeInMask(d *mat.Dense, m *Mask) bool {
	vals := m.Values(d)
	if len(vals) == 0 {
		return false
	}
	lo, hi := floats.Min(vals), floats.Max(vals)
	if !(hi > lo) {
		return false
	}
	span := hi - lo
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			if m.Contains(r, c) {
				d.Set(r, c, (d.At(r, c)-lo)/span)
			}
		}
	}
	return true
}

// Percentile перцентиль p (0..100) с линейной интерполяцией между порядковыми
// статистиками в позиции (n-1)*p/100. Для пустого набора возвращает 0.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	h := float64(len(sorted)-1) * p / 100
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	if lo < 0 {
		return sorted[0]
	}
	frac := h - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

// ThresholdBelow обнуляет все значения карты меньше thr.
func ThresholdBelow(d *mat.Dense, thr float64) {
	rows, cols := d.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if d.At(r, c) < thr {
				d.Set(r, c, 0)
			}
		}
	}
}
