package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rythmize/rythmize/internal/shared"
	"golang.org/x/time/rate"
)

func newTestClient(baseURL string) *SpotifyClient {
	return &SpotifyClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
}

func TestSpotifyClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Playlists", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me/playlists" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
				t.Errorf("expected bearer token, got %q", auth)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"items": [
					{"id": "p1", "name": "Chill", "tracks": {"total": 12}},
					{"id": "p2", "name": "Focus", "tracks": {"total": 3}}
				],
				"total": 2, "limit": 50, "offset": 0, "next": null
			}`))
		}))
		defer upstream.Close()

		playlists, err := newTestClient(upstream.URL).Playlists(ctx, "tok")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(playlists))
		}
		if playlists[0].ID != "p1" || playlists[0].Title != "Chill" || playlists[0].TrackCount != 12 {
			t.Errorf("unexpected first playlist: %+v", playlists[0])
		}
	})

	t.Run("PlaylistTracks", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/playlists/p1/tracks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"items": [
					{"track": {
						"id": "t1", "name": "Song A", "duration_ms": 215000,
						"uri": "spotify:track:abc",
						"album": {"name": "Album A", "artists": [{"name": "Artist X"}]}
					}}
				],
				"total": 1, "limit": 100, "offset": 0, "next": null
			}`))
		}))
		defer upstream.Close()

		trackList, err := newTestClient(upstream.URL).PlaylistTracks(ctx, "tok", "p1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(trackList) != 1 {
			t.Fatalf("expected 1 track, got %d", len(trackList))
		}

		track := trackList[0]
		if track.Title != "Song A" || track.Album != "Album A" || track.Artist != "Artist X" {
			t.Errorf("unexpected track mapping: %+v", track)
		}
		// 215000ms is 3.58 minutes; truncation, not rounding.
		if track.Duration != "3 min" {
			t.Errorf("expected '3 min', got %q", track.Duration)
		}
		if track.URI != "spotify:track:abc" {
			t.Errorf("unexpected URI %q", track.URI)
		}
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		var createBody map[string]any
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Path {
			case "/me":
				w.Write([]byte(`{"id": "spotify-user-9"}`))
			case "/users/spotify-user-9/playlists":
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				json.NewDecoder(r.Body).Decode(&createBody)
				w.Write([]byte(`{"id": "new-playlist-id"}`))
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer upstream.Close()

		id, err := newTestClient(upstream.URL).CreatePlaylist(ctx, "tok", "Road Trip", "playlist created by rythmize.", false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "new-playlist-id" {
			t.Errorf("expected created playlist id, got %q", id)
		}
		if createBody["name"] != "Road Trip" {
			t.Errorf("expected playlist name in body, got %v", createBody["name"])
		}
		if createBody["public"] != false {
			t.Errorf("expected public=false, got %v", createBody["public"])
		}
	})

	t.Run("SearchTrack", func(t *testing.T) {
		t.Run("First Match Wins", func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				query := r.URL.Query()
				if query.Get("type") != "track" {
					t.Errorf("expected type=track, got %q", query.Get("type"))
				}
				if query.Get("q") != "track:Song A artist:Artist X" {
					t.Errorf("unexpected query %q", query.Get("q"))
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"tracks": {"items": [
					{"uri": "spotify:track:first"},
					{"uri": "spotify:track:second"}
				]}}`))
			}))
			defer upstream.Close()

			uri, err := newTestClient(upstream.URL).SearchTrack(ctx, "tok", "Song A", "Artist X")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if uri != "spotify:track:first" {
				t.Errorf("expected first match, got %q", uri)
			}
		})

		t.Run("No Match", func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"tracks": {"items": []}}`))
			}))
			defer upstream.Close()

			_, err := newTestClient(upstream.URL).SearchTrack(ctx, "tok", "Nope", "Nobody")
			if !errors.Is(err, shared.ErrTrackNotFound) {
				t.Errorf("expected ErrTrackNotFound, got %v", err)
			}
		})
	})

	t.Run("AddTracks", func(t *testing.T) {
		var body map[string][]string
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/playlists/p1/tracks" || r.Method != http.MethodPost {
				t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			}
			json.NewDecoder(r.Body).Decode(&body)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"snapshot_id": "snap-1"}`))
		}))
		defer upstream.Close()

		snapshot, err := newTestClient(upstream.URL).AddTracks(ctx, "tok", "p1", []string{"spotify:track:abc"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if snapshot != "snap-1" {
			t.Errorf("expected snapshot id, got %q", snapshot)
		}
		if len(body["uris"]) != 1 || body["uris"][0] != "spotify:track:abc" {
			t.Errorf("expected uris body, got %v", body)
		}

		t.Run("Empty URI List", func(t *testing.T) {
			_, err := newTestClient(upstream.URL).AddTracks(ctx, "tok", "p1", nil)
			if !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	})

	t.Run("Upstream Failure", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer upstream.Close()

		_, err := newTestClient(upstream.URL).Playlists(ctx, "tok")

		var upstreamErr *shared.UpstreamError
		if !errors.As(err, &upstreamErr) {
			t.Fatalf("expected UpstreamError, got %v", err)
		}
		if upstreamErr.Status != http.StatusTooManyRequests {
			t.Errorf("expected status 429, got %d", upstreamErr.Status)
		}
	})

	t.Run("Transport Failure", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		upstream.Close() // refuse connections

		_, err := newTestClient(upstream.URL).Me(ctx, "tok")

		var upstreamErr *shared.UpstreamError
		if !errors.As(err, &upstreamErr) {
			t.Fatalf("expected UpstreamError, got %v", err)
		}
		if upstreamErr.Status != 0 {
			t.Errorf("expected status 0 for transport failure, got %d", upstreamErr.Status)
		}
	})
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		ms   int
		want string
	}{
		{0, "0 min"},
		{59999, "0 min"},
		{60000, "1 min"},
		{215000, "3 min"},
		{3600000, "60 min"},
	}

	for _, c := range cases {
		if got := formatDuration(c.ms); got != c.want {
			t.Errorf("formatDuration(%d) = %q, want %q", c.ms, got, c.want)
		}
	}
}
