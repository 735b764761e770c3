package telegram

import (
	"fmt"
	"strings"

	app "mri-bot/internal/application"
	"mri-bot/internal/domain/entity"
)

// barWidth длина самой длинной полосы диаграммы.
const barWidth = 20

// formatSummary итог классификации: класс, уверенность и диаграмма вероятностей.
func formatSummary(res *app.AnalysisResult) string {
	p := res.Prediction
	var b strings.Builder
	fmt.Fprintf(&b, "🧠 Модель: %s\n", res.Model.Title())
	fmt.Fprintf(&b, "🔎 Результат: %s\n", p.Label())
	fmt.Fprintf(&b, "📊 Уверенность: %s\n\n", p.ConfidencePercent())
	b.WriteString("Вероятности по классам:\n")
	b.WriteString(formatChart(p))
	return b.String()
}

// formatChart текстовая диаграмма, классы по убыванию вероятности, предсказанный отмечен.
func formatChart(p *entity.Prediction) string {
	sorted := p.Sorted()
	width := 0
	for _, cp := range sorted {
		if len(cp.Label) > width {
			width = len(cp.Label)
		}
	}

	var b strings.Builder
	for _, cp := range sorted {
		n := int(cp.Probability*barWidth + 0.5)
		if n < 0 {
			n = 0
		}
		if n > barWidth {
			n = barWidth
		}
		mark := "  "
		if cp.Index == p.ClassIndex {
			mark = "▶ "
		}
		fmt.Fprintf(&b, "%s%-*s %s%s %.4f\n", mark, width, cp.Label,
			strings.Repeat("█", n), strings.Repeat("░", barWidth-n), cp.Probability)
	}
	return b.String()
}

// formatModels список моделей с отметкой текущей.
func formatModels(ids []entity.ModelID, current entity.ModelID) string {
	var b strings.Builder
	b.WriteString("🧠 Доступные модели:\n")
	for _, id := range ids {
		mark := "•"
		if id == current {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s — %s\n", mark, id, id.Title())
	}
	b.WriteString("\nВыбор: /model <id>")
	return b.String()
}
