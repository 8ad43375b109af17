package api

const requestBodyMaxSize = 64 * 1024 // 64 KiB

// errorResponse is the JSON error envelope for every non-2xx answer. Clients
// read the message from the "error" field.
type errorResponse struct {
	Error string `json:"error"`
}
