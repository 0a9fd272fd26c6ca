package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/inimene84/cad2data-pipeline/internal/safejson"
)

var serializationFailure = []byte(`{"error":"serialization_error","detail":"response could not be encoded"}` + "\n")

// writeJSON encodes through the safe-JSON layer so non-finite numbers become null.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	raw, err := safejson.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		slog.Error("http_response_encode_failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(serializationFailure)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(raw, '\n'))
}
