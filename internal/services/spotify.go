// Spotify API client
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rythmize/rythmize/internal/models"
	"github.com/rythmize/rythmize/internal/shared"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// upstreamTimeout bounds every provider call; the upstream enforces none.
const upstreamTimeout = 15 * time.Second

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	URI     string          `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

type playlistTracks struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Tracks playlistTracks `json:"tracks"`
	URI    string         `json:"uri"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of playlist tracks.
type SpotifyPaginatedTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifyClient wraps the playlist and track endpoints of the Spotify Web API.
//
// Every operation takes the bearer token to use; token acquisition and
// refresh live in [Authenticator]. Calls share a client-side rate limiter
// and a bounded timeout.
type SpotifyClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSpotifyClient creates a Spotify API client.
func NewSpotifyClient() *SpotifyClient {
	return &SpotifyClient{
		baseURL:    spotifyBaseURL,
		httpClient: &http.Client{Timeout: upstreamTimeout},
		limiter:    rate.NewLimiter(rate.Limit(5), 1),
	}
}

// doRequest performs an authenticated HTTP request to the Spotify API.
//
// A non-2xx response becomes an [shared.UpstreamError] carrying the status;
// transport failures and timeouts become one with status zero.
func (s *SpotifyClient) doRequest(ctx context.Context, method, endpoint, token string, body, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return &shared.UpstreamError{Err: err}
	}

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &shared.UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &shared.UpstreamError{Status: resp.StatusCode}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Me retrieves the current authenticated user's profile.
func (s *SpotifyClient) Me(ctx context.Context, token string) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", token, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Playlists retrieves the current user's playlists.
//
// Only the first page (up to 50 entries) is fetched; deeper collections are
// not followed.
func (s *SpotifyClient) Playlists(ctx context.Context, token string) ([]models.PlaylistRef, error) {
	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, http.MethodGet, "/me/playlists?limit=50&offset=0", token, nil, &response); err != nil {
		return nil, err
	}

	playlists := make([]models.PlaylistRef, 0, len(response.Items))
	for _, item := range response.Items {
		playlists = append(playlists, models.PlaylistRef{
			ID:         item.ID,
			Title:      item.Name,
			TrackCount: item.Tracks.Total,
		})
	}
	return playlists, nil
}

// PlaylistTracks retrieves the tracks of a playlist. First page only, same as
// [SpotifyClient.Playlists].
func (s *SpotifyClient) PlaylistTracks(ctx context.Context, token, playlistID string) ([]models.TrackRef, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=100&offset=0", url.PathEscape(playlistID))

	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, http.MethodGet, endpoint, token, nil, &response); err != nil {
		return nil, err
	}

	tracks := make([]models.TrackRef, 0, len(response.Items))
	for _, item := range response.Items {
		track := models.TrackRef{
			ID:       item.Track.ID,
			Title:    item.Track.Name,
			Duration: formatDuration(item.Track.DurationMS),
			Album:    item.Track.Album.Name,
			URI:      item.Track.URI,
		}
		if len(item.Track.Album.Artists) > 0 {
			track.Artist = item.Track.Album.Artists[0].Name
		} else if len(item.Track.Artists) > 0 {
			track.Artist = item.Track.Artists[0].Name
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// CreatePlaylist creates a playlist for the current user and returns its id.
//
// The provider scopes playlist creation to a user id, so the caller's
// profile is resolved first (one extra round trip).
func (s *SpotifyClient) CreatePlaylist(ctx context.Context, token, name, description string, public bool) (string, error) {
	user, err := s.Me(ctx, token)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(user.ID))
	body := map[string]any{"name": name, "description": description, "public": public}

	var created struct {
		ID string `json:"id"`
	}
	if err := s.doRequest(ctx, http.MethodPost, endpoint, token, body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// SearchTrack searches by track title and artist and returns the URI of the
// first match. No disambiguation is attempted.
func (s *SpotifyClient) SearchTrack(ctx context.Context, token, title, artist string) (string, error) {
	query := url.QueryEscape(fmt.Sprintf("track:%s artist:%s", title, artist))
	endpoint := fmt.Sprintf("/search?q=%s&type=track&offset=0&limit=20", query)

	var response struct {
		Tracks struct {
			Items []SpotifyTrack `json:"items"`
		} `json:"tracks"`
	}
	if err := s.doRequest(ctx, http.MethodGet, endpoint, token, nil, &response); err != nil {
		return "", err
	}

	if len(response.Tracks.Items) == 0 {
		return "", fmt.Errorf("%w: %s by %s", shared.ErrTrackNotFound, title, artist)
	}
	return response.Tracks.Items[0].URI, nil
}

// AddTracks appends track URIs to a playlist in one bulk request and returns
// the provider's snapshot id.
func (s *SpotifyClient) AddTracks(ctx context.Context, token, playlistID string, uris []string) (string, error) {
	if len(uris) == 0 {
		return "", fmt.Errorf("%w: no track URIs to add", shared.ErrInvalidInput)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	body := map[string]any{"uris": uris}

	var response struct {
		SnapshotID string `json:"snapshot_id"`
	}
	if err := s.doRequest(ctx, http.MethodPost, endpoint, token, body, &response); err != nil {
		return "", err
	}
	return response.SnapshotID, nil
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var upstream *shared.UpstreamError
	return errors.As(err, &upstream) && upstream.Status == http.StatusNotFound
}

// formatDuration renders a track duration as whole minutes, truncated.
func formatDuration(durationMS int) string {
	return fmt.Sprintf("%d min", durationMS/60000)
}
