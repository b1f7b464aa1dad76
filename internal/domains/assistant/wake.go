package assistant

import "strings"

// DefaultWakeToken triggers the assistant when it leads a message body.
const DefaultWakeToken = "@ai"

// Detector performs wake-phrase detection on raw message text.
type Detector struct {
	token string
}

// NewDetector builds a detector for the given wake token. An empty token
// falls back to DefaultWakeToken.
func NewDetector(token string) Detector {
	if token == "" {
		token = DefaultWakeToken
	}
	return Detector{token: token}
}

// Detect reports whether the trimmed body starts with the wake token,
// case-insensitively and anchored at position 0 only. When triggered it
// returns the remainder with the token stripped and whitespace trimmed; a
// bare wake token yields an empty command, which is distinct from "not
// triggered".
func (d Detector) Detect(body string) (command string, triggered bool) {
	trimmed := strings.TrimSpace(body)
	if len(trimmed) < len(d.token) {
		return "", false
	}
	if !strings.EqualFold(trimmed[:len(d.token)], d.token) {
		return "", false
	}
	return strings.TrimSpace(trimmed[len(d.token):]), true
}
