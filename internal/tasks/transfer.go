// package tasks implements playlist transfer orchestration.
package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/rythmize/rythmize/internal/models"
	"github.com/rythmize/rythmize/internal/shared"
)

// PlaylistAPI is the slice of the Spotify client the transfer engine needs.
type PlaylistAPI interface {
	Playlists(ctx context.Context, token string) ([]models.PlaylistRef, error)
	PlaylistTracks(ctx context.Context, token, playlistID string) ([]models.TrackRef, error)
	CreatePlaylist(ctx context.Context, token, name, description string, public bool) (string, error)
	SearchTrack(ctx context.Context, token, title, artist string) (string, error)
	AddTracks(ctx context.Context, token, playlistID string, uris []string) (string, error)
}

// TransferResult summarizes one transfer run.
//
// Per-pair failures are not itemized; Skipped carries the count of pairs
// that did not resolve to a track.
type TransferResult struct {
	PlaylistID string `json:"playlist_id"`
	Created    bool   `json:"created"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Requested  int    `json:"requested"`
	Added      int    `json:"added"`
	Skipped    int    `json:"skipped"`
	Duplicates int    `json:"duplicates"`
}

// TransferEngine converges a named playlist to a superset of the requested
// tracks.
type TransferEngine struct {
	client PlaylistAPI
}

// NewTransferEngine creates a TransferEngine over the given client.
func NewTransferEngine(client PlaylistAPI) *TransferEngine {
	return &TransferEngine{client: client}
}

// Run resolves or creates the destination playlist, then adds only the
// requested tracks it does not already contain.
//
// The destination is found by exact, case-sensitive title match; when
// several playlists share the title, the first one in the provider's listing
// wins. Requested pairs that fail to resolve are skipped and counted, never
// fatal. A run where nothing needs adding is a success with a zero Added
// count and no snapshot id.
func (e *TransferEngine) Run(ctx context.Context, token string, req models.TransferRequest) (*TransferResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	result := &TransferResult{Requested: len(req.Tracks)}

	playlists, err := e.client.Playlists(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	for _, playlist := range playlists {
		if playlist.Title == req.Playlist {
			result.PlaylistID = playlist.ID
			break
		}
	}

	if result.PlaylistID == "" {
		id, err := e.client.CreatePlaylist(ctx, token, req.Playlist, "playlist created by rythmize.", false)
		if err != nil {
			return nil, fmt.Errorf("failed to create playlist: %w", err)
		}
		result.PlaylistID = id
		result.Created = true
	}

	existing, err := e.client.PlaylistTracks(ctx, token, result.PlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist tracks: %w", err)
	}

	present := make(map[string]bool, len(existing))
	for _, track := range existing {
		present[track.URI] = true
	}

	var pending []string
	for _, pair := range req.Tracks {
		uri, err := e.client.SearchTrack(ctx, token, pair.Track, pair.Artist)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("search aborted: %w", ctx.Err())
			}
			// A pair that fails to resolve is skipped, not fatal. Callers
			// get the count, not per-pair detail.
			var upstream *shared.UpstreamError
			if errors.Is(err, shared.ErrTrackNotFound) || errors.As(err, &upstream) {
				result.Skipped++
				continue
			}
			return nil, fmt.Errorf("search failed: %w", err)
		}

		if present[uri] {
			result.Duplicates++
			continue
		}
		present[uri] = true
		pending = append(pending, uri)
	}

	if len(pending) == 0 {
		return result, nil
	}

	snapshot, err := e.client.AddTracks(ctx, token, result.PlaylistID, pending)
	if err != nil {
		return nil, fmt.Errorf("failed to add tracks: %w", err)
	}

	result.SnapshotID = snapshot
	result.Added = len(pending)
	return result, nil
}
