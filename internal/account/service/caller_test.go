package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"acctgate/internal/account/service"
)

func TestHTTPCallerPostsEnvelope(t *testing.T) {
	var got struct {
		Target  string `json:"target"`
		Value   uint64 `json:"value"`
		Payload string `json:"payload"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	caller := service.NewHTTPCaller(srv.URL, srv.Client())
	err := caller.Call(context.Background(), addr(0x99), 42, []byte("hi"))
	require.NoError(t, err)
	require.Equal(t, addr(0x99).String(), got.Target)
	require.Equal(t, uint64(42), got.Value)
	require.Equal(t, "aGk=", got.Payload)
}

func TestHTTPCallerNon2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "revert", http.StatusBadGateway)
	}))
	defer srv.Close()

	caller := service.NewHTTPCaller(srv.URL, srv.Client())
	err := caller.Call(context.Background(), addr(0x99), 1, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}
