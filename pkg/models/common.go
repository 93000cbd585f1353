// Package models holds the wire types shared by the dashboard API and its
// clients.
package models

// APIError is the JSON body of every failed dashboard API request. Error is
// shown to operators as is; for backend failures it is the backend's own
// message.
type APIError struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// APIResponse wraps results of commands that have no resource of their own,
// such as a refresh.
type APIResponse struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}
