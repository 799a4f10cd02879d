package v1

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplay         = "Idempotent-Replay"
)

// storedResponse is what a replayed request gets back.
type storedResponse struct {
	BodyHash string
	Status   int
	Payload  []byte
}

func hashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func idempotencyKey(userID, route, key string) string { return userID + "|" + route + "|" + key }

// replay answers from the cache when key was seen. A reused key with a
// different body is a conflict. It reports whether a response was written.
func (s *Server) replay(w http.ResponseWriter, key, bodyHash string) bool {
	prev, ok := s.idem.Get(key)
	if !ok {
		return false
	}
	if prev.BodyHash != bodyHash {
		conflict(w, "idempotency key reused with a different body", "idempotency_key_conflict")
		return true
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(headerReplay, "true")
	w.WriteHeader(prev.Status)
	_, _ = w.Write(prev.Payload)
	return true
}

// remember stores the response for key and writes it.
func (s *Server) remember(w http.ResponseWriter, key, bodyHash string, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		toJSON(w, status, v)
		return
	}
	payload = append(payload, '\n')
	s.idem.Set(key, storedResponse{BodyHash: bodyHash, Status: status, Payload: payload})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
