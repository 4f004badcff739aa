package sim

import (
	"encoding/json"
	"net/http"
)

// Response is a fully materialized simulated response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func NewJSONResponse(status int, payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	return &Response{
		StatusCode: status,
		Header:     header,
		Body:       body,
	}, nil
}

// ErrorBody is the error envelope the OpenAI API uses.
type ErrorBody struct {
	Error ErrorDetails `json:"error"`
}

type ErrorDetails struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResponse builds an OpenAI-style error response.
// Marshalling a flat struct cannot fail, so the error is swallowed.
func NewErrorResponse(status int, code string, message string) *Response {
	resp, _ := NewJSONResponse(status, ErrorBody{
		Error: ErrorDetails{
			Code:    code,
			Message: message,
		},
	})

	return resp
}

// Write sends the materialized response to the client.
func (r *Response) Write(w http.ResponseWriter) {
	for key, values := range r.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}

	w.WriteHeader(r.StatusCode)
	_, _ = w.Write(r.Body)
}
