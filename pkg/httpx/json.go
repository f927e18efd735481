package httpx

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// WriteJSON encodes v into a pooled buffer and writes it with the given
// status, Content-Type and Content-Length in one write.
func WriteJSON(w ResponseWriter, status int, v interface{}) error {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	if err := json.NewEncoder(bb).Encode(v); err != nil {
		return err
	}
	// Encode terminates with a newline; the body is the bare document
	bb.B = bytes.TrimSuffix(bb.B, []byte{'\n'})
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(bb.Len()))
	if status == 0 {
		status = 200
	}
	w.WriteHeader(status)
	_, err := w.Write(bb.B)
	return err
}

// JSONError writes {"error": message} with the given status code.
func JSONError(w ResponseWriter, status int, message string) error {
	return WriteJSON(w, status, map[string]string{"error": message})
}
