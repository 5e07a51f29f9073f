// Package services implements the Spotify API surface of the rythmize backend.
//
// # Token Authenticator
//
// [Authenticator] owns the OAuth2 token lifecycle: exchanging authorization
// codes, refreshing expired access tokens, and persisting every token change
// through a [CredentialStore]. Outcomes are tagged [AuthResult] values:
// provider rejections ([StateFailed]) and missing credentials
// ([StateUnauthenticated]) are expected states, not errors.
//
// The token endpoint is called with form-encoded bodies and HTTP Basic auth
// built from client_id:client_secret, per the provider contract. Token
// values are never logged.
//
// # Resource Client
//
// [SpotifyClient] is a thin authenticated wrapper over the playlist and
// track endpoints. All calls go through one doRequest core with a shared
// rate limiter, a bounded timeout, and uniform error mapping: any non-2xx
// becomes a [shared.UpstreamError] carrying the status.
//
// Collection reads fetch a single page only. Callers that need complete
// collections beyond the first page must not assume they get them.
//
// # Splitting the two
//
// The authenticator and the resource client are deliberately separate types:
// resource methods take the bearer token as an argument and hold no
// credential state, so a request handler runs Authenticate once and hands
// the resulting token to as many resource calls as it needs.
package services
