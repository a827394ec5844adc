package llm

import "strings"

const summarySystemPrompt = "You are an expert in generating complete and concise documentation of code."

const docstringSystemPrompt = "You are an expert docstring generator."

func buildSummaryPrompt(text, structural string) string {
	var b strings.Builder
	b.WriteString("Summarize the following code, focusing on key functionality, purpose and dependencies.\n")
	if structural != "" {
		b.WriteString("\nStructural context (already summarized children):\n")
		b.WriteString(structural)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(text)
	return b.String()
}

func buildDocstringPrompt(signature, body, existing string) string {
	var b strings.Builder
	b.WriteString("Write a docstring for the following definition. Describe purpose, parameters and return value.\n")
	b.WriteString("Respond with the docstring text only, without quotes.\n\n")
	b.WriteString("Signature: ")
	b.WriteString(signature)
	b.WriteString("\n")
	if existing != "" {
		b.WriteString("\nPrevious docstring:\n")
		b.WriteString(existing)
		b.WriteString("\n")
	}
	b.WriteString("\nBody:\n")
	b.WriteString(body)
	return b.String()
}
