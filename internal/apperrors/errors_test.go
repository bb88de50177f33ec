package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelsMatchByKind(t *testing.T) {
	err := fmt.Errorf("send request: %w", Wrap(KindAlreadyRequested, "pending request exists", errors.New("dup")))

	assert.True(t, errors.Is(err, ErrAlreadyRequested))
	assert.False(t, errors.Is(err, ErrAlreadyConnected))
	assert.Equal(t, KindAlreadyRequested, KindOf(err))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), KindUnknown},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"not found", NotFound("request not found"), KindNotFound},
		{"wrapped forbidden", fmt.Errorf("x: %w", Forbidden("no")), KindForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestFromStore(t *testing.T) {
	assert.NoError(t, FromStore("op", nil))
	assert.True(t, IsKind(FromStore("find", context.DeadlineExceeded), KindTimeout))
	assert.True(t, IsKind(FromStore("find", errors.New("connection refused")), KindTransportFailure))

	nf := NotFound("session not found")
	assert.Same(t, nf, FromStore("find", nf))
}
