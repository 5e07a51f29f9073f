package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rythmize/rythmize/internal/models"
	"github.com/rythmize/rythmize/internal/shared"
)

// spotifyScopes is the fixed scope set requested during authorization.
const spotifyScopes = "playlist-modify-private playlist-read-collaborative playlist-read-private playlist-modify-public"

// CredentialStore persists per-user OAuth credentials.
//
// Implementations own encryption at rest; credentials cross this boundary in
// plaintext. A Load for an unknown user returns an empty credential, not an
// error.
type CredentialStore interface {
	Load(ctx context.Context, userID string) (*models.Credential, error)
	Save(ctx context.Context, credential *models.Credential) error
}

// AuthState tags the outcome of an authentication attempt.
type AuthState int

const (
	// StateUnauthenticated means no usable credential is on file; the user
	// must be sent through the authorization flow.
	StateUnauthenticated AuthState = iota
	// StateFailed means the provider rejected a token exchange or refresh.
	StateFailed
	// StateValid means the stored access token is usable as-is.
	StateValid
	// StateRefreshed means a new access token was obtained and persisted.
	StateRefreshed
)

func (s AuthState) String() string {
	switch s {
	case StateFailed:
		return "failed"
	case StateValid:
		return "valid"
	case StateRefreshed:
		return "refreshed"
	default:
		return "unauthenticated"
	}
}

// AuthResult is the outcome of [Authenticator.Authenticate].
//
// Provider rejections are outcomes, not errors; the error return of
// Authenticate is reserved for faults (store failures, transport failures).
type AuthResult struct {
	State      AuthState
	Credential *models.Credential
}

// Authenticated reports whether the credential can be used for resource calls.
func (r AuthResult) Authenticated() bool {
	return r.State == StateValid || r.State == StateRefreshed
}

// tokenResponse is the provider token endpoint's success body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// Authenticator manages the OAuth2 authorization-code and refresh-token
// flows against the Spotify accounts service.
//
// Credentials are read from and written back through a [CredentialStore] on
// every token change. A per-user lock serializes the read-refresh-write
// sequence so two concurrent requests for the same user cannot both refresh.
type Authenticator struct {
	clientID     string
	clientSecret string
	redirectURI  string
	tokenURL     string
	authorizeURL string

	store      CredentialStore
	httpClient *http.Client

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAuthenticator creates an Authenticator from Spotify client credentials.
// Missing client id or secret fails here, at startup, not per request.
func NewAuthenticator(cfg shared.SpotifyConfig, store CredentialStore) (*Authenticator, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	return &Authenticator{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		tokenURL:     spotifyTokenURL,
		authorizeURL: spotifyAuthURL,
		store:        store,
		httpClient:   &http.Client{Timeout: upstreamTimeout},
		locks:        make(map[string]*sync.Mutex),
	}, nil
}

// AuthURL builds the provider authorize URL for a user.
//
// Pure function of its input: no side effects, repeatable. The state
// parameter carries the user id so the stateless callback can be correlated
// back to a user.
func (a *Authenticator) AuthURL(userID string) string {
	params := url.Values{}
	params.Set("client_id", a.clientID)
	params.Set("response_type", "code")
	params.Set("scope", spotifyScopes)
	params.Set("state", userID)
	params.Set("redirect_uri", a.redirectURI)
	return a.authorizeURL + "?" + params.Encode()
}

// Authenticate produces a usable credential for the user, or reports why one
// could not be produced.
//
// With an authorization code, the code is exchanged and the credential
// persisted. Without one, the stored credential is served as-is when still
// valid, refreshed when expired and a refresh token is on file, and reported
// unauthenticated otherwise. The no-tokens case makes no network call.
func (a *Authenticator) Authenticate(ctx context.Context, userID, code string) (AuthResult, error) {
	lock := a.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	credential, err := a.store.Load(ctx, userID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to load credential: %w", err)
	}
	credential.UserID = userID

	if code != "" {
		return a.exchange(ctx, credential, url.Values{
			"grant_type":   {"authorization_code"},
			"code":         {code},
			"redirect_uri": {a.redirectURI},
		})
	}

	if credential.Empty() {
		return AuthResult{State: StateUnauthenticated, Credential: credential}, nil
	}

	if !credential.Expired(time.Now()) {
		return AuthResult{State: StateValid, Credential: credential}, nil
	}

	if credential.RefreshToken == "" {
		return AuthResult{State: StateUnauthenticated, Credential: credential}, nil
	}

	return a.exchange(ctx, credential, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {credential.RefreshToken},
	})
}

// exchange posts a form to the token endpoint and, on success, applies and
// persists the new token material.
func (a *Authenticator) exchange(ctx context.Context, credential *models.Credential, form url.Values) (AuthResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+a.clientCredentials())

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return AuthResult{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// An expected outcome, surfaced as a state rather than an error.
		// The body may carry token material on some failures; never log it.
		return AuthResult{State: StateFailed, Credential: credential}, nil
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return AuthResult{}, fmt.Errorf("failed to decode token response: %w", err)
	}

	credential.AccessToken = token.AccessToken
	credential.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	if token.RefreshToken != "" {
		// The provider may omit the refresh token on a refresh; the stored
		// one remains valid and must not be overwritten with nothing.
		credential.RefreshToken = token.RefreshToken
	}

	if err := a.store.Save(ctx, credential); err != nil {
		return AuthResult{}, fmt.Errorf("failed to persist credential: %w", err)
	}

	return AuthResult{State: StateRefreshed, Credential: credential}, nil
}

// clientCredentials returns the Basic auth payload for the token endpoint.
func (a *Authenticator) clientCredentials() string {
	return base64.StdEncoding.EncodeToString([]byte(a.clientID + ":" + a.clientSecret))
}

// userLock returns the mutex serializing credential updates for one user.
func (a *Authenticator) userLock(userID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	lock, ok := a.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[userID] = lock
	}
	return lock
}
