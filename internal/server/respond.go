package server

import (
	"encoding/json"
	"net/http"

	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
)

// errorBody is the JSON error envelope for the admin API.
type errorBody struct {
	Error struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		Suggestion string `json:"suggestion,omitempty"`
	} `json:"error"`
}

func sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// sendError maps structured error codes to HTTP status codes.
func sendError(w http.ResponseWriter, err error) {
	var body errorBody
	status := http.StatusInternalServerError

	if ve, ok := err.(*vxerrors.VaultError); ok {
		body.Error.Code = ve.Code
		body.Error.Message = ve.Message
		body.Error.Suggestion = ve.Suggestion
		status = statusForCode(ve.Code)
	} else {
		body.Error.Code = vxerrors.ErrCodeInternal
		body.Error.Message = err.Error()
	}
	sendJSON(w, status, body)
}

func statusForCode(code string) int {
	switch code {
	case vxerrors.ErrCodeNotFound:
		return http.StatusNotFound
	case vxerrors.ErrCodePathEscape,
		vxerrors.ErrCodeNotMarkdown,
		vxerrors.ErrCodeSectionAbsent,
		vxerrors.ErrCodeInvalidInput,
		vxerrors.ErrCodeQueryEmpty,
		vxerrors.ErrCodeUnknownProvider,
		vxerrors.ErrCodeConfigInvalid:
		return http.StatusBadRequest
	case vxerrors.ErrCodeProviderUnavailable,
		vxerrors.ErrCodeProviderTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
