// Package httpapi exposes the workspace over HTTP: chain listing and
// lifecycle, snapshots, availability signals, the UI websocket and metrics.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"chainstate/internal/logging"
	"chainstate/internal/workspace"
	"chainstate/pkg/domain"
)

// Options carries the optional handlers mounted next to the API.
type Options struct {
	// UI serves the view websocket at /ws.
	UI http.Handler
	// Metrics serves /metrics.
	Metrics http.Handler
	// Vars serves /debug/vars.
	Vars http.Handler

	Logger *logrus.Entry
}

type server struct {
	ws  *workspace.Workspace
	log *logrus.Entry
}

// NewRouter returns the HTTP handler for ws.
func NewRouter(ws *workspace.Workspace, opts Options) http.Handler {
	s := &server{ws: ws, log: logging.OrDiscard(opts.Logger)}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	if opts.UI != nil {
		r.Handle("/ws", opts.UI)
	}
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
	if opts.Vars != nil {
		r.Handle("/debug/vars", opts.Vars)
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/chains", s.listChains)
		api.Post("/chains", s.createChain)
		api.Get("/chains/{id}", s.getChain)
		api.Delete("/chains/{id}", s.removeChain)
		api.Post("/chains/{id}/select", s.selectChain)
		api.Post("/chains/{id}/save", s.saveChain)
		api.Get("/chains/{id}/snapshot", s.snapshot)
		api.Post("/save", s.saveAll)
		api.Put("/backend", s.setAvailability(ws.SetBackendAvailable))
		api.Put("/compiler", s.setAvailability(ws.SetCompilerAvailable))
	})
	return r
}

func (s *server) listChains(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{
		"request_id": newRequestID(),
		"current":    s.ws.Registry().Current().Get(),
		"chains":     s.ws.Chains(),
	})
}

func (s *server) createChain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string           `json:"displayName"`
		Kind        domain.ChainKind `json:"kind"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	p, err := s.ws.CreateChain(r.Context(), req.DisplayName, req.Kind)
	if err != nil {
		writeChainError(w, err)
		return
	}
	s.log.WithField("chain", p.ID()).Info("chain created over http")
	writeJSON(w, 201, map[string]any{"request_id": newRequestID(), "chain": p.Info()})
}

func (s *server) getChain(w http.ResponseWriter, r *http.Request) {
	p, err := s.ws.Chain(chi.URLParam(r, "id"))
	if err != nil {
		writeChainError(w, err)
		return
	}
	st := p.State()
	writeJSON(w, 200, map[string]any{
		"request_id": newRequestID(),
		"chain":      p.Info(),
		"connected":  p.Connected().Get(),
		"accounts":   st.Accounts.All(),
		"deployment": st.Deployment.All(),
		"history":    st.History.All(),
	})
}

func (s *server) removeChain(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.RemoveChain(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeChainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) selectChain(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.ws.SelectChain(id); err != nil {
		writeChainError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"request_id": newRequestID(), "current": id})
}

func (s *server) saveChain(w http.ResponseWriter, r *http.Request) {
	saved, err := s.ws.SaveChain(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeChainError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"request_id": newRequestID(), "saved": saved})
}

func (s *server) snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ws.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeChainError(w, err)
		return
	}
	writeJSON(w, 200, snap)
}

func (s *server) saveAll(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.Teardown(r.Context()); err != nil {
		writeChainError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"request_id": newRequestID(), "saved": true})
}

func (s *server) setAvailability(set func(bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Available *bool `json:"available"`
		}
		if err := readJSON(r, &req); err != nil || req.Available == nil {
			writeError(w, 400, "BAD_JSON", "body must be {\"available\": bool}", nil)
			return
		}
		set(*req.Available)
		writeJSON(w, 200, map[string]any{"request_id": newRequestID(), "available": *req.Available})
	}
}
