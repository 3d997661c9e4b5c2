package util_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"mailassist/pkg/util"
)

type retryableErr bool

func (e retryableErr) Error() string   { return "domain error" }
func (e retryableErr) Retryable() bool { return bool(e) }

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		errType   string
	}{
		{name: "nil", err: nil, retryable: false, errType: ""},
		{name: "canceled", err: fmt.Errorf("run: %w", context.Canceled), retryable: false, errType: "context_canceled"},
		{name: "deadline", err: context.DeadlineExceeded, retryable: true, errType: "timeout"},
		{name: "transient domain error", err: fmt.Errorf("wrap: %w", retryableErr(true)), retryable: true, errType: "transient_error"},
		{name: "permanent domain error", err: retryableErr(false), retryable: false, errType: "permanent_error"},
		{name: "json", err: json.Unmarshal([]byte("{"), &map[string]any{}), retryable: false, errType: "json_decode_error"},
		{name: "no rows", err: pgx.ErrNoRows, retryable: false, errType: "not_found"},
		{name: "url", err: &url.Error{Op: "Get", URL: "http://x", Err: errors.New("refused")}, retryable: true, errType: "network_error"},
		{name: "unknown", err: errors.New("boom"), retryable: false, errType: "unknown_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, errType := util.IsRetryableError(tt.err)
			assert.Equal(t, tt.retryable, retryable)
			assert.Equal(t, tt.errType, errType)
		})
	}
}
