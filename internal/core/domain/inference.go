package domain

type InferenceRole string

const (
	RoleSystem    InferenceRole = "system"
	RoleUser      InferenceRole = "user"
	RoleAssistant InferenceRole = "assistant"
)

type InferenceMessage struct {
	Role    InferenceRole
	Content string
}

// InferenceRequest carries one structured-output completion call. APIKey is the
// caller's credential and overrides the client's default key when set.
type InferenceRequest struct {
	APIKey   string
	Messages []InferenceMessage
}
