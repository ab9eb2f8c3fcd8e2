package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
	}{
		{"transport", errors.New("connection reset"), ErrCodeTransport},
		{"logical", fmt.Errorf("no account for example.social: %w", ErrLogical), ErrCodeLogical},
		{"cancelled", fmt.Errorf("fetch: %w", context.Canceled), ErrCodeCancelled},
		{"deadline is transport", context.DeadlineExceeded, ErrCodeTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := Classify("reload", "example.social:home", tt.err)
			require.NotNil(t, fe)
			assert.Equal(t, tt.code, fe.Code)
			assert.Equal(t, "reload", fe.Op)
			assert.ErrorIs(t, fe, tt.err)
		})
	}
}

func TestClassify_NilAndTyped(t *testing.T) {
	assert.Nil(t, Classify("reload", "f", nil))

	typed := &Error{Code: ErrCodeStore, Op: "load_gap", Err: errors.New("disk full")}
	wrapped := fmt.Errorf("outer: %w", typed)
	assert.Same(t, typed, Classify("reload", "f", wrapped))
}

func TestError_Error(t *testing.T) {
	cause := errors.New("timeout")
	assert.Equal(t, "TRANSPORT: reload (feed=example.social:home): timeout",
		(&Error{Code: ErrCodeTransport, Op: "reload", Feed: "example.social:home", Err: cause}).Error())
	assert.Equal(t, "STORE: load_older: timeout",
		StoreError("load_older", "", cause).Error())
}

func TestErrorPredicates(t *testing.T) {
	transport := Classify("reload", "f", errors.New("x"))
	logical := Classify("reload", "f", ErrLogical)
	cancelled := Classify("reload", "f", context.Canceled)
	storeErr := StoreError("reload", "f", errors.New("io"))

	assert.True(t, IsTransport(transport))
	assert.True(t, IsLogical(logical))
	assert.True(t, IsCancelled(cancelled))

	assert.True(t, IsRetryable(transport))
	assert.True(t, IsRetryable(storeErr))
	assert.False(t, IsRetryable(logical))
	assert.False(t, IsRetryable(cancelled))
	assert.False(t, IsRetryable(errors.New("untyped")))
	assert.False(t, IsTransport(errors.New("untyped")))
}
