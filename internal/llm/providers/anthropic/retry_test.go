package anthropicprovider

import (
	"errors"
	"net/http"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection reset" }
func (fakeNetError) Timeout() bool   { return true }
func (fakeNetError) Temporary() bool { return true }

func TestIsRetryableProviderError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate limited", err: &anthropic.Error{StatusCode: http.StatusTooManyRequests}, want: true},
		{name: "server error", err: &anthropic.Error{StatusCode: http.StatusInternalServerError}, want: true},
		{name: "overloaded", err: &anthropic.Error{StatusCode: 529}, want: true},
		{name: "bad request", err: &anthropic.Error{StatusCode: http.StatusBadRequest}, want: false},
		{name: "unauthorized", err: &anthropic.Error{StatusCode: http.StatusUnauthorized}, want: false},
		{name: "network error", err: fakeNetError{}, want: true},
		{name: "plain error", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isRetryableProviderError(tt.err); got != tt.want {
				t.Fatalf("isRetryableProviderError() = %v, want %v", got, tt.want)
			}
		})
	}
}
