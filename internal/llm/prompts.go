package llm

import "fmt"

// buildExtractionPrompt creates the vision instruction. The key names must
// match domain.ExtractionResult's JSON tags.
func buildExtractionPrompt() string {
	return `Extract the text from the image, write a title in the original language, and then translate both the text and the title into English.
Also identify the type of content (for example "recipe", "shopping list", "document") and suggest, in English, an art style for creating an AI image that is relevant to the content.
Return everything as a JSON object with the following keys: "originalTitle", "originalText", "englishTitle", "englishText", "contentType", "aiArtStyle".
Make sure the JSON is valid.`
}

func buildSummaryPrompt(text string) string {
	return fmt.Sprintf("Please summarize the following text concisely:\n\n%s", text)
}

func buildEmailPrompt(text string) string {
	return fmt.Sprintf(`Create a professional email draft or message based on the following text, using the text as the main content. The result must be a JSON object with the keys "subject" and "body". Text:

%s`, text)
}
