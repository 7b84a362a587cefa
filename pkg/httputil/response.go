package httputil

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	api_models "ragchat-backend/internal/models"
)

// RespondJSON writes a JSON response with the given status code and payload.
func RespondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		log.Printf("Error encoding JSON response: %v", err)
		// Can't write header again here, just log the error
	}
}

// RespondError writes a JSON error response with the given status code and message.
func RespondError(w http.ResponseWriter, statusCode int, message string) {
	resp := api_models.ErrorResponse{Error: message}
	RespondJSON(w, statusCode, resp)
}

// RespondInvalidMessage writes the response for a turn rejected at the boundary.
// Malformed citations map to 422, every other violation to 400.
// Returns false when err is neither kind of boundary error, in which case nothing is written.
func RespondInvalidMessage(w http.ResponseWriter, err error) bool {
	var mcErr *api_models.MalformedContextError
	if errors.As(err, &mcErr) {
		index := mcErr.Index
		resp := api_models.ErrorResponse{Error: mcErr.Error(), Field: "contexts"}
		if mcErr.Field != "" {
			resp.Field = mcErr.Field
		}
		if index >= 0 {
			resp.Index = &index
		}
		RespondJSON(w, http.StatusUnprocessableEntity, resp)
		return true
	}

	var vErr *api_models.ValidationError
	if errors.As(err, &vErr) {
		RespondJSON(w, http.StatusBadRequest, api_models.ErrorResponse{Error: vErr.Error(), Field: vErr.Field})
		return true
	}

	return false
}
