package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

const (
	defaultEvents = 50
	maxEvents     = 256
)

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	v := h.scene.State()
	resp := map[string]interface{}{
		"hud":        v.HUD,
		"localId":    v.LocalID,
		"closed":     v.Closed,
		"players":    len(v.Entities),
		"effects":    v.Effects,
		"animations": v.Animations,
		"resources":  v.Resources,
	}
	if h.session != nil {
		resp["connected"] = h.session.IsConnected()
	}
	writeJSON(w, resp)
}

func (h *routerHandlers) handleGetEntities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.scene.State().Entities)
}

func (h *routerHandlers) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, h.scene.Leaderboard().GetTop(limit))
}

func (h *routerHandlers) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", defaultEvents)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if n > maxEvents {
		n = maxEvents
	}
	writeJSON(w, h.scene.Journal().Recent(n))
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]map[string]uint64{
		"scene":   h.scene.GetStats(),
		"journal": h.scene.Journal().GetStats(),
	}
	if h.session != nil {
		stats["session"] = h.session.GetStats()
	}
	for name, src := range h.stats {
		stats[name] = src.GetStats()
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if h.session == nil {
		writeError(w, "no session", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{
		"sessionId": h.session.SessionID(),
		"connected": h.session.IsConnected(),
	})
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
