package network

import (
	"encoding/json"
	"io"
	"net/http"
)

// NewRouter wires the HTTP surface of the server: the WebSocket endpoint,
// a JSON command endpoint sharing the WebSocket command schema, the
// read-only state view and the metrics handlers.
func (h *Hub) NewRouter() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/api/command", h.handleCommand)
	mux.HandleFunc("/api/state", h.handleState)
	mux.HandleFunc("/api/internal-state", h.handleInternalState)
	mux.Handle("/metrics", h.metrics.Handler())
	mux.Handle("/metrics/prometheus", h.metrics.PrometheusHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Hub) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	reply := h.Handle(body)
	status := http.StatusOK
	if !reply.OK {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, reply)
}

func (h *Hub) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.session.View())
}

// handleInternalState serves the host state string as plain text; PUT replaces it.
func (h *Hub) handleInternalState(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, h.session.View().InternalState)
	case http.MethodPut:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.session.SetInternalState(string(body)); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
