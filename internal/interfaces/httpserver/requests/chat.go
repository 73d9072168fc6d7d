package requests

// SendMessageRequest is the body of both the blocking and streaming chat endpoints.
type SendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}
