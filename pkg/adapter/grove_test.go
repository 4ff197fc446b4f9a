package adapter_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/drivelens/pkg/adapter"
	"github.com/m-mizutani/gt"
)

func TestGroveUpload(t *testing.T) {
	var body []byte
	var chainID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chainID = r.URL.Query().Get("chain_id")
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"storage_key":"abc","gateway_url":"https://api.grove.storage/abc","uri":"lens://abc"}]`))
	}))
	defer srv.Close()

	store := adapter.NewGroveStore(
		adapter.WithGroveEndpoint(srv.URL),
		adapter.WithGroveChainID(37111),
	)

	uri, err := store.Upload(context.Background(), []byte(`{"lens":{}}`))
	gt.NoError(t, err)
	gt.Equal(t, uri, "lens://abc")
	gt.Equal(t, chainID, "37111")
	gt.Equal(t, string(body), `{"lens":{}}`)
}

func TestGroveUploadSingleObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"storage_key":"xyz","uri":"lens://xyz"}`))
	}))
	defer srv.Close()

	uri, err := adapter.NewGroveStore(adapter.WithGroveEndpoint(srv.URL)).Upload(context.Background(), []byte(`{}`))
	gt.NoError(t, err)
	gt.Equal(t, uri, "lens://xyz")
}

func TestGroveUploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	_, err := adapter.NewGroveStore(adapter.WithGroveEndpoint(srv.URL)).Upload(context.Background(), []byte(`{}`))
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("grove rejected upload")
}

func TestGroveUploadMissingURI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := adapter.NewGroveStore(adapter.WithGroveEndpoint(srv.URL)).Upload(context.Background(), []byte(`{}`))
	gt.Error(t, err)
}
