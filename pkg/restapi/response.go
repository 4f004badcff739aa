package restapi

import (
	"encoding/json"
	"net/http"

	zlog "github.com/rs/zerolog/log"
)

// adminResponse is the envelope the admin endpoints use.
// The simulated API surface itself answers in the upstream services'
// own formats, including their error bodies.
type adminResponse struct {
	Result interface{} `json:"result,omitempty"`
	Error  *adminError `json:"error,omitempty"`
}

type adminError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	if code < 600 { // nolint
		w.WriteHeader(code)
	} else {
		w.WriteHeader(http.StatusInternalServerError)
	}

	writeResponse(w, &adminResponse{
		Error: &adminError{
			Message: msg,
			Code:    code,
		},
	})
}

func writeResult(w http.ResponseWriter, result interface{}) {
	w.Header().Set("Content-Type", "application/json")

	writeResponse(w, &adminResponse{
		Result: result,
	})
}

func writeResponse(w http.ResponseWriter, resp *adminResponse) {
	err := json.NewEncoder(w).Encode(resp)
	if err != nil {
		zlog.Error().Err(err).Interface("response", resp).Msg("response encoding failed")
	}
}
