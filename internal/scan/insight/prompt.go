package insight

import (
	"strings"

	"github.com/medflow/medinsight/internal/scan/domain"
)

const insightPrompt = `You are a clinical analysis assistant. Using the patient data and medical history in the context below, write a detailed, structured insight report that helps the treating doctor understand the patient's health status.

Instructions:
- Summarize the patient's background
- Order key medical events in a timeline
- Point out current symptoms, risk factors and test results
- Finish with personalised recommendations
- Answer ONLY with a JSON object of this shape:

{
  "patient_summary": "...",
  "timeline": [
    {"date": "...", "event": "...", "finding": "..."}
  ],
  "previous_medications": [...],
  "current_health_status": "...",
  "allergies": [...],
  "family_history": "...",
  "test_results": {
    "blood_test": "...",
    "culture_test": "...",
    "imaging": "..."
  },
  "recommendations": [...]
}

Context:
`

// BuildContext joins the retrieved chunks with blank lines, in ranking order
func BuildContext(hits []domain.ScoredChunk) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Content
	}
	return strings.Join(parts, "\n\n")
}

// Prompt returns the insight report prompt for a retrieval context
func Prompt(context string) string {
	return insightPrompt + context
}
