package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const uploadWorkers = 4

// Handler exposes batch ingestion as an HTTP endpoint.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with a POST endpoint accepting one
// scraped batch file per request.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read upload: %v", err), http.StatusBadRequest)
		return
	}

	observations, err := ParseObservations(header.Filename, payload)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrUnsupportedFormat) {
			status = http.StatusUnsupportedMediaType
		}
		http.Error(w, err.Error(), status)
		return
	}

	run := h.service.NewRun(header.Filename)
	summary := IngestAll(r.Context(), run, observations, uploadWorkers)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
