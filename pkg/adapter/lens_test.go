package adapter_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/drivelens/pkg/adapter"
	"github.com/m-mizutani/drivelens/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

// fakeLensAPI answers GraphQL requests by matching on the operation field
type fakeLensAPI struct {
	mu       sync.Mutex
	calls    []string
	handlers map[string]func(vars map[string]any) any
	tokens   []string
}

func newFakeLensAPI() *fakeLensAPI {
	return &fakeLensAPI{handlers: map[string]func(map[string]any) any{}}
}

func (f *fakeLensAPI) on(field string, h func(vars map[string]any) any) {
	f.handlers[field] = h
}

func (f *fakeLensAPI) callCount(field string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == field {
			n++
		}
	}
	return n
}

func (f *fakeLensAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for field, h := range f.handlers {
		if strings.Contains(req.Query, field+"(") {
			f.mu.Lock()
			f.calls = append(f.calls, field)
			f.tokens = append(f.tokens, r.Header.Get("Authorization"))
			f.mu.Unlock()

			resp := h(req.Variables)
			if errResp, ok := resp.(gqlErrors); ok {
				_ = json.NewEncoder(w).Encode(map[string]any{"errors": errResp})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{field: resp}})
			return
		}
	}
	http.Error(w, "unknown operation", http.StatusBadRequest)
}

type gqlErrors []map[string]any

func fakeToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	gt.NoError(t, err)
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"none"}`)) + "." + enc.EncodeToString(payload) + ".sig"
}

func newSessionClient(t *testing.T, api *fakeLensAPI) adapter.LensSessionClient {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client := adapter.NewLens(adapter.LensConfig{
		Endpoint: srv.URL,
		Credentials: &adapter.Credentials{
			AccessToken: "access-token",
			IDToken: fakeToken(t, map[string]any{
				"sub": "0xSigner",
				"act": map[string]any{"sub": "0xAccount"},
			}),
		},
		PollInterval: time.Millisecond,
		PollTimeout:  time.Second,
	})
	sc, err := adapter.AsSessionClient(client)
	gt.NoError(t, err)
	return sc
}

func TestAsSessionClientRejectsPublicClient(t *testing.T) {
	client := adapter.NewLens(adapter.LensConfig{Endpoint: "http://127.0.0.1:0"})
	_, err := adapter.AsSessionClient(client)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.ErrTagNotSessionClient))
}

func TestAuthenticatedUser(t *testing.T) {
	sc := newSessionClient(t, newFakeLensAPI())
	user, err := sc.AuthenticatedUser()
	gt.NoError(t, err)
	gt.V(t, user).NotNil()
	gt.Equal(t, user.Address, "0xAccount")
	gt.Equal(t, user.Signer, "0xSigner")
}

func TestAuthenticatedUserMalformedToken(t *testing.T) {
	client := adapter.NewLens(adapter.LensConfig{
		Endpoint:    "http://127.0.0.1:0",
		Credentials: &adapter.Credentials{AccessToken: "not-a-jwt"},
	})
	sc, err := adapter.AsSessionClient(client)
	gt.NoError(t, err)

	_, err = sc.AuthenticatedUser()
	gt.Error(t, err)
}

func TestFetchAccount(t *testing.T) {
	api := newFakeLensAPI()
	api.on("account", func(vars map[string]any) any {
		req := vars["request"].(map[string]any)
		if req["address"] != "0xAccount" {
			return nil
		}
		return map[string]any{
			"address":  "0xAccount",
			"metadata": map[string]any{"name": "alice", "picture": "lens://pic"},
		}
	})
	sc := newSessionClient(t, api)
	ctx := context.Background()

	account, err := sc.FetchAccount(ctx, "0xAccount")
	gt.NoError(t, err)
	gt.V(t, account).NotNil()
	gt.Equal(t, account.Name(), "alice")
	gt.Equal(t, account.Picture(), "lens://pic")

	missing, err := sc.FetchAccount(ctx, "0xOther")
	gt.NoError(t, err)
	gt.V(t, missing).Nil()

	gt.Equal(t, api.tokens[0], "Bearer access-token")
}

func TestFetchAccountGraphQLError(t *testing.T) {
	api := newFakeLensAPI()
	api.on("account", func(vars map[string]any) any {
		return gqlErrors{{"message": "rate limited"}}
	})
	sc := newSessionClient(t, api)

	_, err := sc.FetchAccount(context.Background(), "0xAccount")
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("rate limited")
}

func TestPostDirectResponse(t *testing.T) {
	api := newFakeLensAPI()
	api.on("post", func(vars map[string]any) any {
		req := vars["request"].(map[string]any)
		gt.Equal(t, req["contentUri"], any("lens://abc"))
		return map[string]any{"__typename": "PostResponse", "hash": "0xdeadbeef"}
	})
	api.on("transactionStatus", func(vars map[string]any) any {
		return map[string]any{"__typename": "FinishedTransactionStatus"}
	})
	sc := newSessionClient(t, api)

	hashes, err := sc.Post(context.Background(), "lens://abc")
	gt.NoError(t, err)
	gt.Equal(t, hashes, []string{"0xdeadbeef"})
	gt.Equal(t, api.callCount("transactionStatus"), 1)
}

func TestPostTransactionRequestNeedsWallet(t *testing.T) {
	for _, typename := range []string{"SponsoredTransactionRequest", "SelfFundedTransactionRequest"} {
		t.Run(typename, func(t *testing.T) {
			api := newFakeLensAPI()
			api.on("post", func(vars map[string]any) any {
				return map[string]any{
					"__typename": typename,
					"reason":     "signless disabled",
					"raw":        map[string]any{"to": "0xFeed", "data": "0x01", "nonce": 1, "chainId": 232},
				}
			})
			api.on("transactionStatus", func(vars map[string]any) any {
				return map[string]any{"__typename": "FinishedTransactionStatus"}
			})
			sc := newSessionClient(t, api)

			hashes, err := sc.Post(context.Background(), "lens://abc")
			gt.Error(t, err)
			gt.A(t, hashes).Length(0)
			gt.True(t, goerr.HasTag(err, model.ErrTagWalletTransactionRequired))
			gt.Equal(t, api.callCount("transactionStatus"), 0)
		})
	}
}

func TestPostTransactionWillFail(t *testing.T) {
	api := newFakeLensAPI()
	api.on("post", func(vars map[string]any) any {
		return map[string]any{"__typename": "TransactionWillFail", "reason": "not enough funds"}
	})
	sc := newSessionClient(t, api)

	_, err := sc.Post(context.Background(), "lens://abc")
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("not enough funds")
}

func TestPostFailedTransactionStatus(t *testing.T) {
	api := newFakeLensAPI()
	api.on("post", func(vars map[string]any) any {
		return map[string]any{"__typename": "PostResponse", "hash": "0x01"}
	})
	api.on("transactionStatus", func(vars map[string]any) any {
		return map[string]any{"__typename": "FailedTransactionStatus", "reason": "reverted"}
	})
	sc := newSessionClient(t, api)

	_, err := sc.Post(context.Background(), "lens://abc")
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("reverted")
}

func TestLogin(t *testing.T) {
	wallet := newTestWallet(t)

	api := newFakeLensAPI()
	api.on("challenge", func(vars map[string]any) any {
		req := vars["request"].(map[string]any)
		owner := req["accountOwner"].(map[string]any)
		gt.Equal(t, owner["owner"], any(wallet.Address()))
		gt.Equal(t, owner["account"], any("0xAccount"))
		return map[string]any{"id": "challenge-1", "text": "sign me"}
	})
	api.on("authenticate", func(vars map[string]any) any {
		req := vars["request"].(map[string]any)
		gt.Equal(t, req["id"], any("challenge-1"))

		sig := decodeHex(t, req["signature"].(string))
		signer, err := adapter.RecoverAddress([]byte("sign me"), sig)
		gt.NoError(t, err)
		if signer != wallet.Address() {
			return map[string]any{"__typename": "WrongSignerError", "reason": "wrong signer"}
		}
		return map[string]any{
			"__typename":   "AuthenticationTokens",
			"accessToken":  "a",
			"refreshToken": "r",
			"idToken":      "i",
		}
	})
	srv := httptest.NewServer(api)
	defer srv.Close()

	auth := adapter.NewLensAuthenticator(adapter.LensConfig{Endpoint: srv.URL})
	creds, err := auth.Login(context.Background(), adapter.LoginInput{
		App:     "0xApp",
		Account: "0xAccount",
		Signer:  wallet,
	})
	gt.NoError(t, err)
	gt.Equal(t, *creds, adapter.Credentials{AccessToken: "a", RefreshToken: "r", IDToken: "i"})
}

func TestLoginRejected(t *testing.T) {
	api := newFakeLensAPI()
	api.on("challenge", func(vars map[string]any) any {
		return map[string]any{"id": "c", "text": "t"}
	})
	api.on("authenticate", func(vars map[string]any) any {
		return map[string]any{"__typename": "ForbiddenError", "reason": "app not allowed"}
	})
	srv := httptest.NewServer(api)
	defer srv.Close()

	auth := adapter.NewLensAuthenticator(adapter.LensConfig{Endpoint: srv.URL})
	_, err := auth.Login(context.Background(), adapter.LoginInput{Signer: newTestWallet(t)})
	gt.Error(t, err)
}
