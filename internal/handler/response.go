package handler

import (
	"encoding/json"
	"net/http"
)

// respondWithError adalah helper untuk mengirim respons error dalam format JSON.
// The first message is also exposed as "error" for clients that show one line.
func respondWithError(w http.ResponseWriter, code int, messages ...string) {
	if len(messages) == 0 {
		messages = []string{http.StatusText(code)}
	}
	respondWithJson(w, code, map[string]any{
		"error":  messages[0],
		"errors": messages,
	})
}

// respondWithJson adalah helper serbaguna untuk mengirim respons dalam format JSON.
func respondWithJson(w http.ResponseWriter, code int, payload any) {
	dat, err := json.Marshal(payload)
	if err != nil {
		// Avoid recursion - write error directly
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Failed to marshal response","errors":["Failed to marshal response"]}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(dat)
}
