package handler

import (
	"encoding/json"
	"net/http"

	"github.com/musig5344/ocasino/internal/domain"
)

// envelope is the wire shape every endpoint responds with (spec §6): a
// success carries data and an optional message, a failure carries a single
// error object with a machine code, a message, and optional details.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// RespondJSON writes the success envelope with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	RespondSuccess(w, status, data, "")
}

// RespondSuccess writes {"success":true,"data":...,"message":...}.
func RespondSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Message: message})
}

// RespondError writes {"success":false,"error":{...}}, mapping a
// *domain.AppError to its carried status and code. Any other error is
// reported as an opaque internal error so a handler can never leak
// driver/library detail to a partner.
func RespondError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*domain.AppError)
	if !ok {
		appErr = domain.ErrInternal("internal server error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &errorBody{Code: appErr.Code, Message: appErr.Message},
	})
}

// RespondErrorDetails is RespondError with an extra details payload, used by
// validation failures that want to point at the offending field.
func RespondErrorDetails(w http.ResponseWriter, err error, details interface{}) {
	appErr, ok := err.(*domain.AppError)
	if !ok {
		appErr = domain.ErrInternal("internal server error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &errorBody{Code: appErr.Code, Message: appErr.Message, Details: details},
	})
}

// DecodeJSON reads and decodes a JSON request body into dst. Bodies larger
// than 1 MiB are rejected.
func DecodeJSON(r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MiB
	return json.NewDecoder(r.Body).Decode(dst)
}
