package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/rythmize/rythmize/internal/models"
	"github.com/rythmize/rythmize/internal/services"
	"github.com/rythmize/rythmize/internal/shared"
	"github.com/rythmize/rythmize/internal/tasks"
)

// AuthService is the authenticator surface the handlers consume.
type AuthService interface {
	AuthURL(userID string) string
	Authenticate(ctx context.Context, userID, code string) (services.AuthResult, error)
}

// Catalog is the read side of the Spotify client consumed by the handlers.
type Catalog interface {
	Playlists(ctx context.Context, token string) ([]models.PlaylistRef, error)
	PlaylistTracks(ctx context.Context, token, playlistID string) ([]models.TrackRef, error)
}

// Transferrer runs playlist transfers.
type Transferrer interface {
	Run(ctx context.Context, token string, req models.TransferRequest) (*tasks.TransferResult, error)
}

// API bundles the handlers for the rythmize HTTP surface.
type API struct {
	logger *log.Logger
	auth   AuthService
	client Catalog
	engine Transferrer
}

// NewAPI creates the handler set.
func NewAPI(logger *log.Logger, auth AuthService, client Catalog, engine Transferrer) *API {
	return &API{logger: logger, auth: auth, client: client, engine: engine}
}

// Register wires all routes onto the router. The OAuth callback is the only
// route without a caller identity; it correlates via the state parameter.
func (a *API) Register(router Router) {
	router.Handle(http.MethodGet, "/api/v1/auth/connect/spotify/callback/", http.HandlerFunc(a.Callback))
	router.Handle(http.MethodGet, "/api/v1/auth/connect/spotify/", RequireUser(http.HandlerFunc(a.Connect)))
	router.Handle(http.MethodGet, "/api/v1/auth/connect/spotify/status", RequireUser(http.HandlerFunc(a.Status)))
	router.Handle(http.MethodGet, "/api/v1/clients/spotify/playlists/", RequireUser(http.HandlerFunc(a.Playlists)))
	router.Handle(http.MethodGet, "/api/v1/clients/spotify/playlist/{id}/tracks", RequireUser(http.HandlerFunc(a.PlaylistTracks)))
	router.Handle(http.MethodPost, "/api/v1/clients/spotify/playlist/transfer", RequireUser(http.HandlerFunc(a.Transfer)))
}

// Connect returns the authorization URL for the caller, or reports that the
// account is already linked.
func (a *API) Connect(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)

	result, err := a.auth.Authenticate(r.Context(), userID, "")
	if err != nil {
		a.fail(w, err)
		return
	}

	if result.Authenticated() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"auth_url": a.auth.AuthURL(userID)})
}

// Callback handles the provider redirect after user consent.
//
// state carries the user id the flow was started for.
func (a *API) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	userID := query.Get("state")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing state parameter"})
		return
	}

	if query.Has("error") {
		a.logger.Warn("authorization denied", "user", userID, "reason", query.Get("error"))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "failed to authenticate"})
		return
	}

	result, err := a.auth.Authenticate(r.Context(), userID, query.Get("code"))
	if err != nil {
		a.fail(w, err)
		return
	}

	if !result.Authenticated() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "failed to authenticate"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

// Status reports whether the caller's Spotify account is linked and usable.
func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)

	result, err := a.auth.Authenticate(r.Context(), userID, "")
	if err != nil {
		a.fail(w, err)
		return
	}

	if result.Authenticated() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
		return
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"status":   "not connected",
		"auth_url": a.auth.AuthURL(userID),
	})
}

// Playlists lists the caller's playlists.
func (a *API) Playlists(w http.ResponseWriter, r *http.Request) {
	token, ok := a.authorize(w, r)
	if !ok {
		return
	}

	playlists, err := a.client.Playlists(r.Context(), token)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

// PlaylistTracks lists the tracks of one playlist.
func (a *API) PlaylistTracks(w http.ResponseWriter, r *http.Request) {
	token, ok := a.authorize(w, r)
	if !ok {
		return
	}

	trackList, err := a.client.PlaylistTracks(r.Context(), token, r.PathValue("id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trackList)
}

// Transfer copies the requested tracks into the named playlist.
func (a *API) Transfer(w http.ResponseWriter, r *http.Request) {
	token, ok := a.authorize(w, r)
	if !ok {
		return
	}

	var req models.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	result, err := a.engine.Run(r.Context(), token, req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// authorize runs the token lifecycle for the caller and hands back a usable
// bearer token. On any non-usable outcome it writes the 401 response itself.
func (a *API) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := UserID(r)

	result, err := a.auth.Authenticate(r.Context(), userID, "")
	if err != nil {
		a.fail(w, err)
		return "", false
	}

	if !result.Authenticated() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":    "user not authorized",
			"auth_url": a.auth.AuthURL(userID),
		})
		return "", false
	}

	return result.Credential.AccessToken, true
}

// fail maps an error to a response. Upstream statuses are logged, token
// contents never are.
func (a *API) fail(w http.ResponseWriter, err error) {
	var upstream *shared.UpstreamError
	switch {
	case errors.As(err, &upstream):
		a.logger.Error("upstream call failed", "status", upstream.Status)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "spotify request failed"})
	case errors.Is(err, shared.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		a.logger.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
