package publish

import (
	"context"
	"fmt"

	"github.com/m-mizutani/drivelens/pkg/adapter"
	"github.com/m-mizutani/drivelens/pkg/model"
	"github.com/m-mizutani/drivelens/pkg/usecase/session"
	"github.com/m-mizutani/drivelens/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Pipeline publishes recommendations as Lens posts on behalf of the current
// session
type Pipeline struct {
	resolver *session.Resolver
	store    adapter.ContentStore
	tracker  *Tracker
}

// Option is a functional option for Pipeline
type Option func(*Pipeline)

// WithTracker shares a status tracker with the caller
func WithTracker(t *Tracker) Option {
	return func(p *Pipeline) {
		p.tracker = t
	}
}

// New creates a Pipeline
func New(resolver *session.Resolver, store adapter.ContentStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver: resolver,
		store:    store,
		tracker:  NewTracker(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tracker returns the status tracker of the pipeline
func (p *Pipeline) Tracker() *Tracker { return p.tracker }

// Publish uploads rec as post content and creates a post referencing it.
// Every call uploads and posts again; retries are not deduplicated.
func (p *Pipeline) Publish(ctx context.Context, rec model.Recommendation) (*model.PublishOutcome, error) {
	return p.PublishWithID(ctx, model.NewRequestID(), rec)
}

// PublishWithID is Publish with a caller chosen request ID, so the caller can
// follow the request on the Tracker while it runs
func (p *Pipeline) PublishWithID(ctx context.Context, id model.RequestID, rec model.Recommendation) (*model.PublishOutcome, error) {
	req := &model.PublishRequest{
		ID:             id,
		Recommendation: rec,
	}
	return p.run(ctx, req)
}

func (p *Pipeline) run(ctx context.Context, req *model.PublishRequest) (outcome *model.PublishOutcome, err error) {
	logger := logging.From(ctx).With("request_id", req.ID, "car", req.Recommendation.Car)

	p.tracker.begin(req.ID)
	defer p.tracker.settle(req.ID)

	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = goerr.New(fmt.Sprintf("publish panicked: %v", r),
				goerr.T(model.ErrTagPublishSubmissionFailed),
				goerr.V("request_id", req.ID))
		}
		if err != nil {
			logger.Error("failed to publish recommendation", "error", err)
		}
	}()

	if err := req.Recommendation.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid recommendation", goerr.V("request_id", req.ID))
	}

	identity, err := p.resolver.Resolve(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve identity",
			goerr.T(model.ErrTagUnauthenticated),
			goerr.V("request_id", req.ID))
	}
	if identity == nil {
		return nil, goerr.New("not logged in to lens",
			goerr.T(model.ErrTagUnauthenticated),
			goerr.V("request_id", req.ID))
	}

	req.Curator = identity.Curator()
	post := model.RecommendationPost{
		Car:     req.Recommendation.Car,
		Tagline: req.Recommendation.Tagline,
		Content: req.Recommendation.Content,
		Curator: req.Curator,
	}
	req.Payload, err = post.Marshal()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to serialize recommendation",
			goerr.T(model.ErrTagPublishSubmissionFailed),
			goerr.V("request_id", req.ID))
	}
	doc, err := textOnly(req.Payload)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to wrap recommendation",
			goerr.T(model.ErrTagPublishSubmissionFailed),
			goerr.V("request_id", req.ID))
	}

	req.ContentURI, err = p.store.Upload(ctx, doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to upload post content",
			goerr.T(model.ErrTagUploadFailed),
			goerr.V("request_id", req.ID))
	}
	logger.Info("post content uploaded", "uri", req.ContentURI, "curator", req.Curator)

	client, err := p.resolver.Client(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to reopen lens client",
			goerr.T(model.ErrTagPublishSubmissionFailed),
			goerr.V("request_id", req.ID))
	}
	sc, err := adapter.AsSessionClient(client)
	if err != nil {
		return nil, goerr.Wrap(err, "lens session lost before posting",
			goerr.T(model.ErrTagPublishSubmissionFailed),
			goerr.V("request_id", req.ID))
	}

	hashes, err := sc.Post(ctx, req.ContentURI)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create post",
			goerr.T(model.ErrTagPublishSubmissionFailed),
			goerr.V("request_id", req.ID),
			goerr.V("uri", req.ContentURI))
	}
	if len(hashes) == 0 || hashes[0] == "" {
		return nil, goerr.New("post created without a transaction hash",
			goerr.T(model.ErrTagPublishSubmissionFailed),
			goerr.V("request_id", req.ID),
			goerr.V("uri", req.ContentURI))
	}
	req.TxHash = hashes[0]

	logger.Info("recommendation published", "tx_hash", req.TxHash)
	return &model.PublishOutcome{RequestID: req.ID, TxHash: req.TxHash}, nil
}
