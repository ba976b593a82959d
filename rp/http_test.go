package rp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPVerifier_BeginRegistration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/begin-register", r.URL.Path)

		var req beginRegisterRequest
		require.NoError(t, jsoniter.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a@x.com", req.Subject)
		assert.Equal(t, "Alice", req.DisplayName)

		_ = jsoniter.NewEncoder(w).Encode(beginRegisterResponse{
			Challenge:     []byte("0123456789abcdef0123456789abcdef"),
			RPID:          "loans.example.com",
			RPName:        "Loan Servicing",
			SubjectHandle: []byte("handle"),
			Algorithms:    []int64{-7},
		})
	}))
	defer server.Close()

	v := NewHTTPVerifier(server.URL, 0)
	challenge, err := v.BeginRegistration(context.Background(), "a@x.com", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "loans.example.com", challenge.RelyingParty.ID)
	assert.Len(t, challenge.Challenge, 32)
	assert.Equal(t, []int64{-7}, challenge.Algorithms)
}

func TestHTTPVerifier_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNoCredentials},
		{http.StatusConflict, ErrAlreadyRegistered},
		{http.StatusBadRequest, ErrRejected},
		{http.StatusUnauthorized, ErrRejected},
		{http.StatusInternalServerError, ErrNetwork},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))

		v := NewHTTPVerifier(server.URL, 0)
		_, err := v.BeginAuthentication(context.Background(), "a@x.com")
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
		server.Close()
	}
}

func TestHTTPVerifier_RejectedResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = jsoniter.NewEncoder(w).Encode(finishAuthResponse{Accepted: false})
	}))
	defer server.Close()

	v := NewHTTPVerifier(server.URL, 0)
	_, err := v.VerifyAuthentication(context.Background(), &Assertion{Subject: "a@x.com"})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestHTTPVerifier_AcceptedAuthentication(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/finish-auth", r.URL.Path)
		_ = jsoniter.NewEncoder(w).Encode(finishAuthResponse{
			Accepted:     true,
			CredentialID: "cred-1",
			NewCounter:   8,
		})
	}))
	defer server.Close()

	v := NewHTTPVerifier(server.URL, 0)
	result, err := v.VerifyAuthentication(context.Background(), &Assertion{Subject: "a@x.com", Response: []byte("{}")})
	require.NoError(t, err)
	assert.Equal(t, "cred-1", result.CredentialID)
	assert.Equal(t, uint32(8), result.NewCounter)
}

func TestHTTPVerifier_NetworkFailureWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	v := NewHTTPVerifier(server.URL, time.Second)
	_, err := v.BeginAuthentication(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, ErrNetwork)
}
