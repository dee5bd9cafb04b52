// Package pilesdk is the HTTP client for the Pile cloud API. It covers the
// posts table, content-addressed blob storage and collection management.
// Auth tokens are issued elsewhere; the SDK only carries them.
package pilesdk

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/imroc/req/v3"
)

type Config struct {
	// BaseURL of the Pile cloud API
	BaseURL string

	// AccessToken is the bearer token for the signed-in user. May be empty
	// for an unauthenticated client; calls requiring identity will fail.
	AccessToken string
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("sdk: invalid base url %q", c.BaseURL)
	}
	return nil
}

// Client is the Pile cloud API client.
type Client struct {
	Posts       *PostsAPI
	Blob        *BlobAPI
	Collections *CollectionsAPI

	config *Config
	http   *req.Client

	mu        sync.RWMutex
	principal *Principal
}

func New(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	http := newHTTPClient().SetBaseURL(config.BaseURL)

	c := &Client{
		config: config,
		http:   http,
	}
	c.Posts = newPostsAPI(http)
	c.Blob = newBlobAPI(http)
	c.Collections = newCollectionsAPI(http)

	if config.AccessToken != "" {
		if err := c.SetSession(config.AccessToken); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// SetSession installs the bearer token and caches the identity parsed from
// it. Replaces any previous session.
func (c *Client) SetSession(accessToken string) error {
	principal, err := parsePrincipal(accessToken)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.principal = principal
	c.http.SetCommonBearerAuthToken(accessToken)
	return nil
}

// Identity returns the current signed-in principal. Returns
// ErrNoAccessToken when no session is installed and ErrTokenExpired when
// the token is past its expiry, both without network I/O.
func (c *Client) Identity() (*Principal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.principal == nil {
		return nil, ErrNoAccessToken
	}
	if c.principal.Expired() {
		return nil, ErrTokenExpired
	}
	return c.principal, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}
