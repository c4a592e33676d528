package ingest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/nchanged/gridwatch/internal/app"
	"github.com/nchanged/gridwatch/internal/buffer"
)

// maxBodyBytes caps ingest and edit request bodies.
const maxBodyBytes = 1 << 20

// Server accepts samples pushed by external collectors into the combined
// buffer.
type Server struct {
	app *app.Context
}

func NewServer(ctx *app.Context) *Server {
	return &Server{app: ctx}
}

type IngestRequest struct {
	Samples []buffer.Sample `json:"samples"`
}

func (s *Server) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req IngestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rb := s.app.Combined()
	rb.Push(req.Samples...)

	writeJSON(w, http.StatusAccepted, map[string]int{
		"accepted": len(req.Samples),
		"count":    rb.Len(),
	})
}

// HandleEdit changes the sample {offset} positions back from the newest.
func (s *Server) HandleEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	offset, err := strconv.Atoi(r.PathValue("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad offset")
		return
	}

	var edit buffer.Edit
	if !decodeBody(w, r, &edit) {
		return
	}

	rb := s.app.Combined()
	if err := rb.EditRecent(offset, edit); err != nil {
		if errors.Is(err, buffer.ErrOutOfRange) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sample, err := rb.Recent(offset)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

// decodeBody reads a JSON body of at most maxBodyBytes into v, answering
// the request itself when that fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Printf("Failed to encode response: %v", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{"message": "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
