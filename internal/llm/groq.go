package llm

// GroqBaseURL is Groq's OpenAI-compatible API endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// NewGroqProvider creates a provider for Groq-hosted models such as
// llama-3.1-8b-instant.
func NewGroqProvider(apiKey string, model string) *OpenAIProvider {
	return newCompatibleProvider("groq", apiKey, GroqBaseURL, model)
}
