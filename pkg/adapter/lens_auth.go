package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

// LensAuthenticator performs the Lens login handshake
type LensAuthenticator interface {
	Login(ctx context.Context, input LoginInput) (*Credentials, error)
}

// LoginInput selects the account to log in as. When Account is empty the
// wallet logs in as an account-less builder.
type LoginInput struct {
	App     string
	Account string
	Signer  Signer
}

const challengeMutation = `mutation Challenge($request: ChallengeRequest!) {
  challenge(request: $request) { id text }
}`

const authenticateMutation = `mutation Authenticate($request: SignedAuthChallenge!) {
  authenticate(request: $request) {
    __typename
    ... on AuthenticationTokens { accessToken refreshToken idToken }
    ... on WrongSignerError { reason }
    ... on ExpiredChallengeError { reason }
    ... on ForbiddenError { reason }
  }
}`

// NewLensAuthenticator returns an authenticator talking to cfg.Endpoint
func NewLensAuthenticator(cfg LensConfig) LensAuthenticator {
	cfg.Credentials = nil
	return NewLens(cfg).(*lensPublicClient)
}

func (c *lensPublicClient) Login(ctx context.Context, input LoginInput) (*Credentials, error) {
	if input.Signer == nil {
		return nil, goerr.New("wallet signer is required to log in")
	}

	owner := input.Signer.Address()
	request := map[string]any{}
	if input.Account != "" {
		request["accountOwner"] = map[string]any{
			"app":     input.App,
			"account": input.Account,
			"owner":   owner,
		}
	} else {
		request["builder"] = map[string]any{"address": owner}
	}

	var challenge struct {
		Challenge struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"challenge"`
	}
	if err := c.gql.do(ctx, challengeMutation, map[string]any{"request": request}, &challenge); err != nil {
		return nil, goerr.Wrap(err, "failed to request login challenge", goerr.V("owner", owner))
	}

	sig, err := input.Signer.SignMessage(ctx, []byte(challenge.Challenge.Text))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to sign login challenge")
	}

	var auth struct {
		Authenticate struct {
			Typename string `json:"__typename"`
			Reason   string `json:"reason"`
			Credentials
		} `json:"authenticate"`
	}
	vars := map[string]any{
		"request": map[string]any{
			"id":        challenge.Challenge.ID,
			"signature": SignatureHex(sig),
		},
	}
	if err := c.gql.do(ctx, authenticateMutation, vars, &auth); err != nil {
		return nil, goerr.Wrap(err, "failed to authenticate")
	}

	if auth.Authenticate.Typename != "AuthenticationTokens" {
		return nil, goerr.New("authentication rejected",
			goerr.V("type", auth.Authenticate.Typename),
			goerr.V("reason", auth.Authenticate.Reason))
	}

	creds := auth.Authenticate.Credentials
	return &creds, nil
}
