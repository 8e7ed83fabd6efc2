package handlers

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ActionRequest is the request body for POST /api/insights/{id}/action.
type ActionRequest struct {
	Action string `json:"action"`
}

// TriggerResponse is the response format for an accepted processing trigger.
type TriggerResponse struct {
	Message string `json:"message"`
}
