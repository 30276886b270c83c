package nonce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	s := New()
	token := s.Issue("refresh")
	require.NoError(t, s.Verify("refresh", token))
}

func TestVerifyConsumesToken(t *testing.T) {
	s := New()
	token := s.Issue("refresh")
	require.NoError(t, s.Verify("refresh", token))
	assert.Error(t, s.Verify("refresh", token))
}

func TestVerifyRejectsWrongAction(t *testing.T) {
	s := New()
	token := s.Issue("refresh")
	assert.Error(t, s.Verify("delete", token))
	// cross-action attempt also consumed the token
	assert.Error(t, s.Verify("refresh", token))
}

func TestVerifyRejectsUnknownToken(t *testing.T) {
	s := New()
	assert.Error(t, s.Verify("refresh", "not-a-token"))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	current := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	s := New(WithTTL(time.Minute), WithClock(func() time.Time { return current }))

	token := s.Issue("refresh")
	current = current.Add(2 * time.Minute)
	assert.Error(t, s.Verify("refresh", token))
}
