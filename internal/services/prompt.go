package services

import "fmt"

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildPhotoStudyPrompt creates the fixed prompt sent with every photo.
func (pb *PromptBuilder) BuildPhotoStudyPrompt() string {
	return "You are a helpful study assistant. Describe this image, point out anything useful to students, " +
		"and suggest 5 possible exam-style questions about the content of the image."
}

// BuildAssistantPrompt wraps a free-text question in the fixed
// helpful-assistant prefix.
func (pb *PromptBuilder) BuildAssistantPrompt(question string) string {
	return fmt.Sprintf("You are a helpful assistant for Mekelle University students. Answer the following concisely and clearly:\n\n%s", question)
}
