package adapter

import (
	"context"
	"time"

	"github.com/m-mizutani/drivelens/pkg/model"
	"github.com/m-mizutani/drivelens/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const postMutation = `mutation Post($request: CreatePostRequest!) {
  post(request: $request) {
    __typename
    ... on PostResponse { hash }
    ... on SponsoredTransactionRequest { reason raw { to data nonce chainId } }
    ... on SelfFundedTransactionRequest { reason raw { to data nonce chainId } }
    ... on TransactionWillFail { reason }
  }
}`

const transactionStatusQuery = `query TransactionStatus($request: TransactionStatusRequest!) {
  transactionStatus(request: $request) {
    __typename
    ... on FailedTransactionStatus { reason }
  }
}`

// transactionRequest is the unsigned operation the network wants the wallet
// to authorize
type transactionRequest struct {
	To      string `json:"to"`
	Data    string `json:"data"`
	Nonce   int64  `json:"nonce"`
	ChainID int64  `json:"chainId"`
}

type operationResult struct {
	Typename string              `json:"__typename"`
	Hash     string              `json:"hash,omitempty"`
	Reason   string              `json:"reason,omitempty"`
	Raw      *transactionRequest `json:"raw,omitempty"`
}

func (c *lensSessionClient) Post(ctx context.Context, contentURI string) ([]string, error) {
	var data struct {
		Post operationResult `json:"post"`
	}
	vars := map[string]any{
		"request": map[string]any{"contentUri": contentURI},
	}
	if err := c.gql.do(ctx, postMutation, vars, &data); err != nil {
		return nil, goerr.Wrap(err, "failed to create post", goerr.V("content_uri", contentURI))
	}

	hash, err := c.handleOperation(ctx, &data.Post)
	if err != nil {
		return nil, err
	}

	if err := c.waitForTransaction(ctx, hash); err != nil {
		return nil, err
	}
	return []string{hash}, nil
}

// handleOperation settles the union returned by a write mutation. Only
// operations the network executes itself are supported; a request that needs
// a transaction sent from the wallet fails with
// model.ErrTagWalletTransactionRequired.
func (c *lensSessionClient) handleOperation(ctx context.Context, op *operationResult) (string, error) {
	switch op.Typename {
	case "PostResponse":
		if op.Hash == "" {
			return "", goerr.New("post response without hash")
		}
		return op.Hash, nil

	case "SponsoredTransactionRequest", "SelfFundedTransactionRequest":
		opts := []goerr.Option{
			goerr.T(model.ErrTagWalletTransactionRequired),
			goerr.V("type", op.Typename),
			goerr.V("reason", op.Reason),
		}
		if op.Raw != nil {
			opts = append(opts, goerr.V("to", op.Raw.To), goerr.V("chain_id", op.Raw.ChainID))
		}
		logging.From(ctx).Debug("post needs a wallet transaction", "type", op.Typename, "reason", op.Reason)
		return "", goerr.New("post requires a transaction sent from the wallet, enable sponsorship for the app", opts...)

	case "TransactionWillFail":
		return "", goerr.New(op.Reason, goerr.V("type", op.Typename))

	default:
		return "", goerr.New("unexpected operation result", goerr.V("type", op.Typename))
	}
}

// waitForTransaction polls until the transaction is indexed or failed
func (c *lensSessionClient) waitForTransaction(ctx context.Context, txHash string) error {
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	vars := map[string]any{
		"request": map[string]any{"txHash": txHash},
	}

	for {
		var data struct {
			Status operationResult `json:"transactionStatus"`
		}
		if err := c.gql.do(ctx, transactionStatusQuery, vars, &data); err != nil {
			return goerr.Wrap(err, "failed to query transaction status", goerr.V("tx_hash", txHash))
		}

		switch data.Status.Typename {
		case "FinishedTransactionStatus":
			return nil
		case "FailedTransactionStatus":
			return goerr.New(data.Status.Reason, goerr.V("tx_hash", txHash))
		}

		select {
		case <-ctx.Done():
			return goerr.Wrap(ctx.Err(), "transaction was not confirmed in time", goerr.V("tx_hash", txHash))
		case <-time.After(c.pollInterval):
		}
	}
}
