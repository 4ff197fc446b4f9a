package session

import (
	"context"

	"github.com/m-mizutani/drivelens/pkg/adapter"
	"github.com/m-mizutani/drivelens/pkg/model"
	"github.com/m-mizutani/drivelens/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// ClientFactory returns a Lens client reflecting the current session
type ClientFactory func(ctx context.Context) (adapter.LensClient, error)

// Resolver finds out who the caller is on the Lens network
type Resolver struct {
	newClient ClientFactory
}

// New creates a Resolver
func New(newClient ClientFactory) *Resolver {
	return &Resolver{newClient: newClient}
}

// Client returns a fresh Lens client from the factory
func (r *Resolver) Client(ctx context.Context) (adapter.LensClient, error) {
	client, err := r.newClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create lens client")
	}
	return client, nil
}

// Resolve returns the authenticated identity, or nil when nobody is logged
// in. Not being logged in, or a soft failure while reading the account, is
// not an error.
func (r *Resolver) Resolve(ctx context.Context) (*model.SessionIdentity, error) {
	logger := logging.From(ctx)

	client, err := r.Client(ctx)
	if err != nil {
		return nil, err
	}

	sc, err := adapter.AsSessionClient(client)
	if err != nil {
		logger.Debug("no lens session")
		return nil, nil
	}

	user, err := sc.AuthenticatedUser()
	if err != nil {
		logger.Warn("lens session has no readable identity", "error", err)
		return nil, nil
	}
	if user == nil || user.Address == "" {
		return nil, nil
	}

	account, err := sc.FetchAccount(ctx, user.Address)
	if err != nil {
		logger.Warn("failed to fetch lens account", "address", user.Address, "error", err)
		return nil, nil
	}
	if account == nil {
		logger.Debug("lens account not found", "address", user.Address)
		return nil, nil
	}

	return account, nil
}
