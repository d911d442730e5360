package controllers

import (
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// writeError writes a {"error":true,"message":...} body with the given status.
func writeError(w http.ResponseWriter, status int, message string) {
	writeStatusJSON(w, status, errorResp{Error: true, Message: message})
}

// writeJSON writes a 200 JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	writeStatusJSON(w, http.StatusOK, data)
}

func writeStatusJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// NotFound answers unmatched routes with the JSON error envelope.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// MethodNotAllowed answers known paths hit with the wrong verb.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// guidVar parses the {guid} path variable.
func guidVar(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["guid"])
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// int64Var parses a non-negative integer path variable.
func int64Var(r *http.Request, name string) (int64, bool) {
	n, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// parseBool accepts the usual spellings; empty means false.
func parseBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
