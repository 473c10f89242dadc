package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStaffToken(t *testing.T) {
	now := time.Now()
	tok, err := NewStaffToken("s3cret", "cashier", 30, now)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(30*time.Minute), tok.Exp, time.Second)

	parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) { return []byte("s3cret"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "cashier", claims["role"])
	assert.Equal(t, "staff:cashier", claims["sub"])

	_, err = jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) { return []byte("other"), nil })
	assert.Error(t, err)
}

func TestNewStaffTokenRequiresSecret(t *testing.T) {
	_, err := NewStaffToken("", "owner", 30, time.Now())
	assert.Error(t, err)
}
