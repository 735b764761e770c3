package narrative

import (
	"fmt"
	"strings"
)

// maxSentences ограничение длины пояснения.
const maxSentences = 6

// BuildPrompt собирает запрос к модели: роль нейрохирурга, четыре пункта анализа и ограничение длины.
func BuildPrompt(label string, confidence float64) string {
	var b strings.Builder
	b.WriteString("You are a leading neurosurgeon and an expert in brain tumor diagnostics. ")
	b.WriteString("You are reviewing a saliency map produced by a deep learning model that classifies brain MRI scans ")
	b.WriteString("into four categories: glioma, meningioma, pituitary tumor, or no tumor. ")
	b.WriteString("Reason through the case step by step, draw on experience with earlier cases, verify your reasoning, then answer.\n\n")

	fmt.Fprintf(&b, "The overlay colours the regions that drove the prediction: warm colours (red and yellow) mark the strongest influence, "+
		"blue marks little or none. The model predicted the class '%s' with a confidence of %.2f%%.\n\n", label, confidence*100)

	b.WriteString("In your analysis:\n")
	b.WriteString("1. Explain the significance of the highlighted regions for the predicted class.\n")
	b.WriteString("2. Give possible medical reasons for the prediction based on the location and shape of the highlighted areas.\n")
	b.WriteString("3. Include relevant insight from similar historical cases that supports or questions the prediction.\n")
	b.WriteString("4. Suggest next steps for the patient and the care team, such as further imaging, biopsy or treatment options.\n\n")

	b.WriteString("Make sure the explanation:\n")
	b.WriteString("- uses professional medical terminology;\n")
	b.WriteString("- reflects your expertise as a neurosurgeon;\n")
	fmt.Fprintf(&b, "- stays concise, no more than %d sentences.\n", maxSentences)
	return b.String()
}
