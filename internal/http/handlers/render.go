package handlers

import (
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"albumrender/internal/domain"
	"albumrender/internal/middleware"
	"albumrender/internal/render"
)

const maxRenderBody = 64 << 10

// Render handles POST /render. Malformed or invalid requests get 400; every
// accepted render answers 200 with its definitive outcome.
func (a *App) Render(w http.ResponseWriter, r *http.Request) {
	var req render.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRenderBody))
	if err := dec.Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := a.Renderer.Render(r.Context(), req)
	if err != nil {
		if render.IsRejected(err) {
			a.error(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), domain.ErrInvalidRequest.Error()+": "))
			return
		}
		a.Logger.Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("render: not started")
		a.error(w, http.StatusInternalServerError, "render could not be started")
		return
	}
	a.json(w, http.StatusOK, res)
}
