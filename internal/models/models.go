// package models defines the data model for the rythmize backend
package models

import (
	"fmt"
	"strings"
	"time"
)

// Credential holds a user's Spotify OAuth tokens.
//
// The refresh token is stored encrypted at rest; by the time a Credential
// exists in memory both tokens are plaintext. A zero ExpiresAt means no
// expiry was recorded, and such a credential is treated as expired.
type Credential struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Empty reports whether no tokens are on file at all.
func (c *Credential) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Expired reports whether the access token can no longer be used.
//
// The comparison is strict: a token expiring exactly now is still served.
// A credential with a token but no recorded expiry counts as expired, which
// forces a refresh instead of trusting it forever.
func (c *Credential) Expired(now time.Time) bool {
	if c.AccessToken == "" {
		return true
	}
	if c.ExpiresAt.IsZero() {
		return true
	}
	return c.ExpiresAt.Before(now)
}

// PlaylistRef is a read-only projection of a provider playlist.
// Never persisted; re-fetched on every call.
type PlaylistRef struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	TrackCount int    `json:"tracks"`
}

// TrackRef is a read-only projection of a provider track.
type TrackRef struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Duration string `json:"duration"`
	Album    string `json:"album"`
	Artist   string `json:"artist"`
	URI      string `json:"uri"`
}

// TrackPair names one requested track by title and artist.
type TrackPair struct {
	Track  string `json:"track"`
	Artist string `json:"artist"`
}

// TransferRequest asks for a named playlist to contain the given tracks.
type TransferRequest struct {
	Playlist string      `json:"playlist"`
	Tracks   []TrackPair `json:"tracks"`
}

// Validate rejects a malformed transfer request before any network call.
func (r *TransferRequest) Validate() error {
	if strings.TrimSpace(r.Playlist) == "" {
		return fmt.Errorf("playlist name is required")
	}
	if len(r.Tracks) == 0 {
		return fmt.Errorf("at least one track is required")
	}
	for i, pair := range r.Tracks {
		if strings.TrimSpace(pair.Track) == "" || strings.TrimSpace(pair.Artist) == "" {
			return fmt.Errorf("track %d: both track and artist are required", i)
		}
	}
	return nil
}
