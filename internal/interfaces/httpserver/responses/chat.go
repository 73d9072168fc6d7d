package responses

// ChatResponse is the blocking chat endpoint result.
type ChatResponse struct {
	ConversationID    string `json:"conversation_id"`
	Response          string `json:"response"`
	RemainingRequests int    `json:"remaining_requests"`
}

// RateLimitStatus reports the caller's current quota without consuming a slot.
type RateLimitStatus struct {
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Reset     string `json:"reset"`
}
