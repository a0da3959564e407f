package oauth2

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenResponse_ToOAuth2Token(t *testing.T) {
	token := validToken("a")
	token.TokenType = "Bearer"
	token.IDToken = "id"

	converted := token.ToOAuth2Token()
	assert.Equal(t, "a", converted.AccessToken)
	assert.Equal(t, "Bearer", converted.TokenType)
	assert.Equal(t, "REFRESH", converted.RefreshToken)
	assert.Equal(t, t0.Add(time.Hour), converted.Expiry)
	assert.Equal(t, "id", converted.Extra("id_token"))

	token.ExpiresInSeconds = nil
	assert.True(t, token.ToOAuth2Token().Expiry.IsZero())

	var missing *TokenResponse
	assert.Nil(t, missing.ToOAuth2Token())
}

func TestUserCredential_TokenSource(t *testing.T) {
	var tokenCalls atomic.Int32
	flow := newTestFlow(t, refreshServer(t, &tokenCalls).URL, newCountingStore())

	expired := validToken("a")
	expired.ExpiresInSeconds = int64Ptr(10)
	credential := NewUserCredential(flow, "user", expired)

	source := credential.TokenSource(context.Background())

	token, err := source.Token()
	require.NoError(t, err)
	assert.Equal(t, "new-1", token.AccessToken)
	assert.Equal(t, "REFRESH", token.RefreshToken)

	token, err = source.Token()
	require.NoError(t, err)
	assert.Equal(t, "new-1", token.AccessToken)
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestUserCredential_TokenSourceWithoutRefreshToken(t *testing.T) {
	var tokenCalls atomic.Int32
	flow := newTestFlow(t, refreshServer(t, &tokenCalls).URL, nil)
	credential := NewUserCredential(flow, "user", &TokenResponse{AccessToken: "a", Issued: t0})

	_, err := credential.TokenSource(context.Background()).Token()
	require.Error(t, err)
	assert.Equal(t, int32(0), tokenCalls.Load())
}
