// Package oauth obtains access tokens via the OAuth 2.0 client
// credentials grant.
//
// The client caches tokens in memory and, when configured, in a JSON
// file so repeated runs against the same API reuse a still-valid token
// instead of hitting the token endpoint every time. Tokens are refreshed
// shortly before they expire; concurrent callers share a single fetch.
//
// # Basic Usage
//
//	client := oauth.NewClient(oauth.Config{
//	    TokenURL:     "https://auth.example.com/oauth/token",
//	    ClientID:     "qa-runner",
//	    ClientSecret: os.Getenv("CLIENT_SECRET"),
//	    Scopes:       []string{"api.read"},
//	    CacheFile:    ".specrun-token.json",
//	})
//
//	token, err := client.Token(ctx)
//	if err != nil {
//	    return err
//	}
//	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
//
// # Expiry
//
// The expiry is taken from the expires_in field of the token response.
// When absent, the exp claim of a JWT access token is used; failing
// both, DefaultTokenLifetime applies. A token counts as expired
// DefaultExpiryMargin before its actual expiry to absorb clock skew.
package oauth
