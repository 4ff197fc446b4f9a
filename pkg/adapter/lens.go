package adapter

import (
	"context"
	"net/http"
	"time"

	"github.com/m-mizutani/drivelens/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// DefaultLensEndpoint is the Lens mainnet GraphQL API
	DefaultLensEndpoint = "https://api.lens.xyz/graphql"
	// DefaultLensOrigin is sent as Origin header; the API scopes apps by origin
	DefaultLensOrigin = "https://drivelens.app"
)

// LensClient is a handle to the Lens API. Every client can read public data;
// only a LensSessionClient can act on behalf of a user.
type LensClient interface {
	// FetchAccount returns the account for address, or nil if it does not exist
	FetchAccount(ctx context.Context, address string) (*model.SessionIdentity, error)
}

// LensSessionClient is a LensClient bound to an authenticated session
type LensSessionClient interface {
	LensClient
	// AuthenticatedUser returns the caller of this session, or nil if the
	// session carries no usable identity
	AuthenticatedUser() (*model.AuthenticatedUser, error)
	// Post creates a post referencing contentURI and waits until it is
	// indexed. The returned list holds the produced transaction hashes,
	// primary first.
	Post(ctx context.Context, contentURI string) ([]string, error)
}

// AsSessionClient converts a client to a session client, failing with
// model.ErrTagNotSessionClient when the client has no session
func AsSessionClient(client LensClient) (LensSessionClient, error) {
	sc, ok := client.(LensSessionClient)
	if !ok || sc == nil {
		return nil, goerr.New("lens client has no authenticated session", goerr.T(model.ErrTagNotSessionClient))
	}
	return sc, nil
}

// LensConfig configures NewLens
type LensConfig struct {
	Endpoint     string
	Origin       string
	HTTPClient   *http.Client
	Credentials  *Credentials
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// NewLens returns a session client when credentials are given, otherwise a
// public client
func NewLens(cfg LensConfig) LensClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultLensEndpoint
	}
	if cfg.Origin == "" {
		cfg.Origin = DefaultLensOrigin
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 2 * time.Minute
	}

	gql := &graphqlClient{
		endpoint:   cfg.Endpoint,
		httpClient: cfg.HTTPClient,
		origin:     cfg.Origin,
	}
	public := &lensPublicClient{gql: gql}

	if cfg.Credentials == nil || cfg.Credentials.AccessToken == "" {
		return public
	}

	authed := *gql
	authed.accessToken = cfg.Credentials.AccessToken
	return &lensSessionClient{
		lensPublicClient: lensPublicClient{gql: &authed},
		creds:            *cfg.Credentials,
		pollInterval:     cfg.PollInterval,
		pollTimeout:      cfg.PollTimeout,
	}
}

type lensPublicClient struct {
	gql *graphqlClient
}

const accountQuery = `query Account($request: AccountRequest!) {
  account(request: $request) {
    address
    metadata { name picture }
  }
}`

func (c *lensPublicClient) FetchAccount(ctx context.Context, address string) (*model.SessionIdentity, error) {
	var data struct {
		Account *model.SessionIdentity `json:"account"`
	}
	vars := map[string]any{
		"request": map[string]any{"address": address},
	}
	if err := c.gql.do(ctx, accountQuery, vars, &data); err != nil {
		return nil, goerr.Wrap(err, "failed to fetch account", goerr.V("address", address))
	}
	return data.Account, nil
}

type lensSessionClient struct {
	lensPublicClient
	creds        Credentials
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func (c *lensSessionClient) AuthenticatedUser() (*model.AuthenticatedUser, error) {
	token := c.creds.IDToken
	if token == "" {
		token = c.creds.AccessToken
	}

	claims, err := decodeClaims(token)
	if err != nil {
		return nil, err
	}

	user := &model.AuthenticatedUser{Signer: claims.Sub}
	if claims.Act != nil && claims.Act.Sub != "" {
		user.Address = claims.Act.Sub
	} else {
		user.Address = claims.Sub
	}
	if user.Address == "" {
		return nil, nil
	}
	return user, nil
}
