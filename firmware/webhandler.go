package firmware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"lautenbacher.net/accelmon/accel"
)

const queryTimeout = 2 * time.Second

// KeyValue is the JSON form of a keyed configuration value.
type KeyValue struct {
	Key       string `json:"key"`
	Value     uint32 `json:"value"`
	Supported bool   `json:"supported"`
}

// Board is the JSON answer of /api/board.
type Board struct {
	Type    string `json:"type"`
	TypeID  uint8  `json:"typeId"`
	Samples uint64 `json:"samples"`
}

// Handler serves the keyed configuration surface:
//
//	GET  /api/config?key=r
//	POST /api/config   {"key":"r","value":8}
//	GET  /api/board
func (f *Firmware) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", f.configHandler)
	mux.HandleFunc("/api/board", f.boardHandler)
	return mux
}

func parseKey(s string) (accel.Key, bool) {
	if len(s) != 1 {
		return 0, false
	}
	return accel.Key(s[0]), true
}

func (f *Firmware) configHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		f.getConfig(w, r)
	case http.MethodPost:
		f.setConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (f *Firmware) getConfig(w http.ResponseWriter, r *http.Request) {
	key, ok := parseKey(r.URL.Query().Get("key"))
	if !ok {
		http.Error(w, "key must be a single character", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()
	resp, err := f.Query(ctx, key)
	if err != nil {
		slog.Error("Config query failed", "key", key, "error", err)
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		http.Error(w, "Acquisition not available", status)
		return
	}
	writeJSON(w, http.StatusOK, KeyValue{Key: key.String(), Value: resp.Value, Supported: resp.Supported()})
}

func (f *Firmware) setConfig(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var kv KeyValue
	if err := json.NewDecoder(r.Body).Decode(&kv); err != nil {
		slog.Error("Failed to decode incoming JSON", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	key, ok := parseKey(kv.Key)
	if !ok {
		http.Error(w, "key must be a single character", http.StatusBadRequest)
		return
	}
	slog.Info("Handling POST /api/config request", "key", key, "value", kv.Value)
	f.Update(key, kv.Value)
	w.WriteHeader(http.StatusAccepted)
}

func (f *Firmware) boardHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	t := f.TypeID()
	writeJSON(w, http.StatusOK, Board{Type: t.String(), TypeID: uint8(t), Samples: f.Samples()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
