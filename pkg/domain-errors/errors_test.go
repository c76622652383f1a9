package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesCode(t *testing.T) {
	err := New(CodeQuorumNotMet, "2 of 3 confirmations")
	assert.True(t, Is(err, CodeQuorumNotMet))
	assert.False(t, Is(err, CodeInternal))
	assert.Equal(t, "quorum_not_met: 2 of 3 confirmations", err.Error())
}

func TestWrap(t *testing.T) {
	t.Run("nil in, nil out", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("preserves cause chain", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeInternal, "store unavailable")
		require.Error(t, err)
		assert.True(t, errors.Is(err, cause))
		assert.True(t, HasCode(err, CodeInternal))
	})

	t.Run("outermost code wins", func(t *testing.T) {
		inner := New(CodeNotFound, "no such transaction")
		outer := Wrap(inner, CodeInternal, "lookup failed")
		assert.Equal(t, CodeInternal, CodeOf(outer))
	})

	t.Run("code survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeDuplicateVote, "already confirmed"))
		assert.True(t, Is(err, CodeDuplicateVote))
	})
}

func TestCodeOfUncoded(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Empty(t, MessageOf(errors.New("plain")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeBadRequest, http.StatusBadRequest},
		{CodeValidation, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeBadSignature, http.StatusUnauthorized},
		{CodeExpired, http.StatusUnauthorized},
		{CodeNotFound, http.StatusNotFound},
		{CodeDuplicateVote, http.StatusConflict},
		{CodeTerminalState, http.StatusConflict},
		{CodeInvalidState, http.StatusConflict},
		{CodeReplay, http.StatusConflict},
		{CodeQuorumNotMet, http.StatusPreconditionFailed},
		{CodeCallFailed, http.StatusBadGateway},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ToHTTPStatus(New(tc.code, "x")), string(tc.code))
	}
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(errors.New("uncoded")))
}
