package model

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// ExplorerBaseURL is the Lens block explorer used for confirmation links
const ExplorerBaseURL = "https://explorer.lens.xyz"

// ExplorerTxURL returns the explorer link for a transaction hash
func ExplorerTxURL(txHash string) string {
	return ExplorerBaseURL + "/tx/" + txHash
}

// RequestID identifies one publish attempt
type RequestID string

// NewRequestID generates a new unique RequestID
func NewRequestID() RequestID {
	return RequestID(uuid.New().String())
}

// PublishStatus is the lifecycle of one publish invocation
type PublishStatus string

const (
	PublishStatusIdle     PublishStatus = "idle"
	PublishStatusInFlight PublishStatus = "in-flight"
	PublishStatusSettled  PublishStatus = "settled"
)

// RecommendationPost is the JSON document published for a recommendation
type RecommendationPost struct {
	Car     string `json:"car"`
	Tagline string `json:"tagline"`
	Content string `json:"content"`
	Curator string `json:"curator"`
}

// Marshal returns the compact JSON encoding of the post
func (p *RecommendationPost) Marshal() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal recommendation post")
	}
	return string(raw), nil
}

// PublishRequest tracks one save action. It is owned by a single pipeline
// invocation and never shared.
type PublishRequest struct {
	ID             RequestID
	Recommendation Recommendation
	Curator        string
	Payload        string
	ContentURI     string
	TxHash         string
}

// PublishOutcome is the result of a successful publish
type PublishOutcome struct {
	RequestID RequestID
	TxHash    string
}

// ExplorerURL returns the confirmation link for the outcome
func (o *PublishOutcome) ExplorerURL() string {
	return ExplorerTxURL(o.TxHash)
}
