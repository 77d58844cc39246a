package dto

// ChatRequest is the widget's POST body. Both fields are decoded loosely:
// a non-string message is rejected with a precise error, while malformed
// history turns are dropped.
type ChatRequest struct {
	Message             interface{} `json:"message"`
	ConversationHistory interface{} `json:"conversationHistory" swaggertype:"array,object"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
