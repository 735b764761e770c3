package entity

import (
	"fmt"
	"sort"
)

// Labels фиксированный порядок классов на выходе всех классификаторов.
// График и подсветка опираются на позицию, поэтому порядок менять нельзя.
var Labels = []string{"Glioma", "Meningioma", "No tumor", "Pituitary"}

const (
	ClassGlioma = iota
	ClassMeningioma
	ClassNoTumor
	ClassPituitary
)

// ClassProbability вероятность одного класса.
type ClassProbability struct {
	Index       int     `json:"index"`
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Prediction результат классификации снимка.
type Prediction struct {
	Labels        []string  `json:"labels"`
	Probabilities []float64 `json:"probabilities"`
	ClassIndex    int       `json:"class_index"`
}

// NewPrediction строит предсказание по вектору вероятностей и выбирает argmax.
// При равенстве побеждает первый класс.
func NewPrediction(labels []string, probs []float32) (*Prediction, error) {
	if len(probs) == 0 {
		return nil, fmt.Errorf("empty probability vector")
	}
	if len(labels) != len(probs) {
		return nil, fmt.Errorf("got %d probabilities for %d labels", len(probs), len(labels))
	}
	p := &Prediction{
		Labels:        append([]string(nil), labels...),
		Probabilities: make([]float64, len(probs)),
	}
	for i, v := range probs {
		p.Probabilities[i] = float64(v)
		if p.Probabilities[i] > p.Probabilities[p.ClassIndex] {
			p.ClassIndex = i
		}
	}
	return p, nil
}

// Label название предсказанного класса.
func (p *Prediction) Label() string {
	return p.Labels[p.ClassIndex]
}

// Confidence вероятность предсказанного класса.
func (p *Prediction) Confidence() float64 {
	return p.Probabilities[p.ClassIndex]
}

// ConfidencePercent уверенность в виде "80.00%".
func (p *Prediction) ConfidencePercent() string {
	return fmt.Sprintf("%.2f%%", p.Confidence()*100)
}

// Sorted классы по убыванию вероятности, для графика.
func (p *Prediction) Sorted() []ClassProbability {
	out := make([]ClassProbability, len(p.Probabilities))
	for i, v := range p.Probabilities {
		out[i] = ClassProbability{Index: i, Label: p.Labels[i], Probability: v}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probability > out[j].Probability
	})
	return out
}
