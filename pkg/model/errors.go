package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrTagUnauthenticated marks a publish attempted without a valid session
	ErrTagUnauthenticated = goerr.NewTag("unauthenticated")
	// ErrTagUploadFailed marks a rejected or unreachable content upload
	ErrTagUploadFailed = goerr.NewTag("upload_failed")
	// ErrTagPublishSubmissionFailed marks a failed post creation
	ErrTagPublishSubmissionFailed = goerr.NewTag("publish_submission_failed")
	// ErrTagChannelRenderFault marks an error raised by a channel handler
	ErrTagChannelRenderFault = goerr.NewTag("channel_render_fault")
	// ErrTagWalletTransactionRequired marks a post the network only accepts
	// as a transaction sent from the wallet
	ErrTagWalletTransactionRequired = goerr.NewTag("wallet_transaction_required")
	// ErrTagNotSessionClient marks a Lens client that has no authenticated session
	ErrTagNotSessionClient = goerr.NewTag("not_session_client")
)

// IsPublishFailed reports whether err is a failure of the publish steps that
// follow authentication (upload or submission).
func IsPublishFailed(err error) bool {
	return goerr.HasTag(err, ErrTagUploadFailed) ||
		goerr.HasTag(err, ErrTagPublishSubmissionFailed)
}

// IsUnauthenticated reports whether err was raised because no session exists
func IsUnauthenticated(err error) bool {
	return goerr.HasTag(err, ErrTagUnauthenticated)
}
