package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/medflow/medinsight/internal/analysis/domain"
)

const analysisPrompt = `You are an AI medical assistant that answers queries based on the given context and relevant medical knowledge.
Guidelines:
- Prioritize information from the provided documents and supplement it with general medical knowledge only when necessary.
- Be accurate and cite the document where applicable.
- Give a confidence score based on probability and reasoning.
- Be concise and informative, and avoid speculation.
Analyze ONLY medical data. If the content is not medical, reply exactly "Provide Relevant Medical Data. Thanks".
Answer:
- **Response:**
- **Reasoning:** (explain why this answer is correct and any potential limitations)`

const imageFallback = "Unable to analyze the image due to API issues. " +
	"Please try again later or consult a medical professional for accurate interpretation."

func textPrompt(text string) string {
	return analysisPrompt + "\n\n" + text
}

func textFallback(wordCount int) string {
	return strings.Join([]string{
		"Fallback Analysis:",
		"1. Document Type: Text-based medical report",
		fmt.Sprintf("2. Word Count: Approximately %d words", wordCount),
		"3. Content: The document appears to contain medical information, but detailed analysis is unavailable due to technical issues.",
		"4. Recommendation: Please review the document manually or consult with a healthcare professional for accurate interpretation.",
		"5. Note: This is a simplified analysis due to temporary unavailability of the AI service. For a comprehensive analysis, please try again later.",
	}, "\n")
}

// preview returns the first PreviewLength characters, marking truncation with "..."
func preview(text string) string {
	if utf8.RuneCountInString(text) <= domain.PreviewLength {
		return text
	}
	return string([]rune(text)[:domain.PreviewLength]) + "..."
}
