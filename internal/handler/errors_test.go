package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"mailassist/internal/handler"
	"mailassist/internal/llm"
	"mailassist/internal/provider"
	"mailassist/internal/service"
)

func TestStatusFor(t *testing.T) {
	upstream := &provider.StatusError{Op: "get_message", StatusCode: http.StatusInternalServerError}
	missing := &provider.StatusError{Op: "get_message", StatusCode: http.StatusNotFound}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"model failure", llm.InvocationError("summary", errors.New("boom")), http.StatusBadRequest},
		{"model timeout", llm.InvocationError("summary", context.DeadlineExceeded), http.StatusBadRequest},
		{"no context messages", service.ErrNoContextMessages, http.StatusBadRequest},
		{"empty thread", service.ErrEmptyThread, http.StatusBadRequest},
		{"empty thread from upstream failure", fmt.Errorf("%w: %w", service.ErrEmptyThread, upstream), http.StatusBadGateway},
		{"empty thread from missing messages", fmt.Errorf("%w: %w", service.ErrEmptyThread, missing), http.StatusNotFound},
		{"inbox missing", service.ErrInboxNotFound, http.StatusNotFound},
		{"dispatch running", service.ErrDispatchInProgress, http.StatusConflict},
		{"client gone", context.Canceled, 499},
		{"deadline", fmt.Errorf("list folders: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, handler.StatusFor(tt.err))
		})
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, handler.ExtractToken(r), tt.header)
	}
}
