package models

// StatusResponse is a generic acknowledgement body.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
