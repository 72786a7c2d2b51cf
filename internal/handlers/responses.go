package handlers

// ErrorResponse is the JSON body for failed requests.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}
