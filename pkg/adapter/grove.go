package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const (
	// DefaultGroveEndpoint is the Lens Grove storage API
	DefaultGroveEndpoint = "https://api.grove.storage"
	// LensMainnetChainID is the chain Grove ACLs are evaluated against
	LensMainnetChainID = 232
)

// groveStore uploads immutable JSON documents to Grove
type groveStore struct {
	endpoint   string
	chainID    int64
	httpClient *http.Client
}

// GroveOption configures NewGroveStore
type GroveOption func(*groveStore)

// WithGroveEndpoint overrides the Grove API endpoint
func WithGroveEndpoint(endpoint string) GroveOption {
	return func(g *groveStore) {
		g.endpoint = endpoint
	}
}

// WithGroveChainID sets the chain used for the immutable ACL
func WithGroveChainID(chainID int64) GroveOption {
	return func(g *groveStore) {
		g.chainID = chainID
	}
}

// WithGroveHTTPClient replaces the HTTP client
func WithGroveHTTPClient(client *http.Client) GroveOption {
	return func(g *groveStore) {
		g.httpClient = client
	}
}

// NewGroveStore creates a Grove backed ContentStore
func NewGroveStore(opts ...GroveOption) ContentStore {
	g := &groveStore{
		endpoint:   DefaultGroveEndpoint,
		chainID:    LensMainnetChainID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type groveResource struct {
	StorageKey string `json:"storage_key"`
	GatewayURL string `json:"gateway_url"`
	URI        string `json:"uri"`
}

func (g *groveStore) Upload(ctx context.Context, document []byte) (string, error) {
	u, err := url.Parse(g.endpoint)
	if err != nil {
		return "", goerr.Wrap(err, "invalid grove endpoint", goerr.V("endpoint", g.endpoint))
	}
	q := u.Query()
	q.Set("chain_id", strconv.FormatInt(g.chainID, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(document))
	if err != nil {
		return "", goerr.Wrap(err, "failed to create upload request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to reach grove", goerr.V("endpoint", g.endpoint))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read grove response")
	}
	if resp.StatusCode >= 300 {
		return "", goerr.New("grove rejected upload",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", truncate(string(raw), 512)))
	}

	resource, err := decodeGroveResource(raw)
	if err != nil {
		return "", err
	}
	if resource.URI == "" {
		return "", goerr.New("grove response has no uri", goerr.V("body", truncate(string(raw), 512)))
	}
	return resource.URI, nil
}

// decodeGroveResource accepts a single resource or a list whose first entry
// is the uploaded file
func decodeGroveResource(raw []byte) (*groveResource, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []groveResource
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, goerr.Wrap(err, "failed to decode grove response")
		}
		if len(list) == 0 {
			return nil, goerr.New("grove response is empty")
		}
		return &list[0], nil
	}

	var res groveResource
	if err := json.Unmarshal(trimmed, &res); err != nil {
		return nil, goerr.Wrap(err, "failed to decode grove response")
	}
	return &res, nil
}
