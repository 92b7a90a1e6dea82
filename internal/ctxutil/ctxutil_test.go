package ctxutil

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/ashita-ai/wyrmgate/internal/auth"
)

func TestClaimsRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, ClaimsFromContext(ctx))
	assert.Empty(t, UserIDFromContext(ctx))

	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}
	ctx = WithClaims(ctx, claims)
	assert.Same(t, claims, ClaimsFromContext(ctx))
	assert.Equal(t, "u1", UserIDFromContext(ctx))
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Equal(t, "r-1", RequestIDFromContext(WithRequestID(context.Background(), "r-1")))
}
