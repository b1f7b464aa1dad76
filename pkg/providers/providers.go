// Package providers holds the static catalog of completion providers the
// assistant can be configured with. The catalog is immutable after process
// start; configuration writes are validated against it and calls resolve
// their wire format and default endpoint from it.
package providers

// WireFormat identifies the request/response family a provider speaks.
type WireFormat string

const (
	// WireCompletions is the chat-completions family: system and user
	// entries in one role array, bearer-token auth.
	WireCompletions WireFormat = "completions"
	// WireMessages is the messages family: separate top-level system
	// field, api-key header plus explicit version header.
	WireMessages WireFormat = "messages"
)

// Model is one selectable model of a provider.
type Model struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Provider describes one completion provider.
type Provider struct {
	ID              string     `json:"id"`
	DisplayName     string     `json:"displayName"`
	DefaultEndpoint string     `json:"defaultEndpoint"`
	WireFormat      WireFormat `json:"wireFormat"`
	Models          []Model    `json:"models"`
	Note            string     `json:"note,omitempty"`
}

// HasModel reports whether the provider lists the given model id.
func (p Provider) HasModel(modelID string) bool {
	for _, m := range p.Models {
		if m.ID == modelID {
			return true
		}
	}
	return false
}

var catalog = []Provider{
	{
		ID:              "openai",
		DisplayName:     "OpenAI",
		DefaultEndpoint: "https://api.openai.com/v1/chat/completions",
		WireFormat:      WireCompletions,
		Models: []Model{
			{ID: "gpt-4o", DisplayName: "GPT-4o"},
			{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini"},
			{ID: "gpt-4-turbo", DisplayName: "GPT-4 Turbo"},
		},
	},
	{
		ID:              "anthropic",
		DisplayName:     "Anthropic",
		DefaultEndpoint: "https://api.anthropic.com/v1/messages",
		WireFormat:      WireMessages,
		Models: []Model{
			{ID: "claude-3-5-sonnet-20241022", DisplayName: "Claude 3.5 Sonnet"},
			{ID: "claude-3-5-haiku-20241022", DisplayName: "Claude 3.5 Haiku"},
			{ID: "claude-3-opus-20240229", DisplayName: "Claude 3 Opus"},
		},
	},
	{
		ID:              "deepseek",
		DisplayName:     "DeepSeek",
		DefaultEndpoint: "https://api.deepseek.com/chat/completions",
		WireFormat:      WireCompletions,
		Models: []Model{
			{ID: "deepseek-chat", DisplayName: "DeepSeek Chat"},
			{ID: "deepseek-reasoner", DisplayName: "DeepSeek Reasoner"},
		},
	},
	{
		ID:              "groq",
		DisplayName:     "Groq",
		DefaultEndpoint: "https://api.groq.com/openai/v1/chat/completions",
		WireFormat:      WireCompletions,
		Models: []Model{
			{ID: "llama-3.3-70b-versatile", DisplayName: "Llama 3.3 70B"},
			{ID: "mixtral-8x7b-32768", DisplayName: "Mixtral 8x7B"},
		},
	},
	{
		ID:              "ollama",
		DisplayName:     "Ollama",
		DefaultEndpoint: "http://localhost:11434/v1/chat/completions",
		WireFormat:      WireCompletions,
		Models: []Model{
			{ID: "llama3.1:8b-instruct", DisplayName: "Llama 3.1 8B Instruct"},
			{ID: "qwen2.5:14b", DisplayName: "Qwen 2.5 14B"},
		},
		Note: "local deployment; credential is ignored by the server but still required by the client",
	},
}

// List returns the ordered provider catalog.
func List() []Provider {
	out := make([]Provider, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the provider with the given id.
func Lookup(id string) (Provider, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}
