package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("generate: %w", context.DeadlineExceeded), KindTimeout},
		{"googleapi 403", &googleapi.Error{Code: http.StatusForbidden, Message: "API key not valid"}, KindUnauthorized},
		{"googleapi 429", &googleapi.Error{Code: http.StatusTooManyRequests}, KindUnavailable},
		{"googleapi 504", &googleapi.Error{Code: http.StatusGatewayTimeout}, KindTimeout},
		{"status 401", &StatusError{StatusCode: http.StatusUnauthorized, Body: "bad key"}, KindUnauthorized},
		{"status 500", &StatusError{StatusCode: http.StatusInternalServerError}, KindUnavailable},
		{"quota message", errors.New("rpc error: Resource Exhausted: quota exceeded"), KindUnavailable},
		{"api key message", errors.New("invalid API key supplied"), KindUnauthorized},
		{"timeout message", errors.New("request timed out after 50s"), KindTimeout},
		{"unknown", errors.New("connection reset by peer"), KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if KindOf(got) != tt.want {
				t.Errorf("Classify() kind = %q, want %q", KindOf(got), tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error should wrap the original")
			}
		})
	}
}

func TestClassifyKeepsClassifiedErrors(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
	if got := Classify(ErrEmptyResponse); got != ErrEmptyResponse {
		t.Errorf("Classify(ErrEmptyResponse) = %v", got)
	}
	wrapped := fmt.Errorf("advanced tier: %w", ErrEmptyResponse)
	if KindOf(Classify(wrapped)) != KindEmptyResponse {
		t.Error("wrapped classified error lost its kind")
	}
}

func TestClassifyRecordsStatusCode(t *testing.T) {
	var pe *Error
	if !errors.As(Classify(&StatusError{StatusCode: http.StatusBadGateway}), &pe) {
		t.Fatal("expected *Error")
	}
	if pe.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want %d", pe.StatusCode, http.StatusBadGateway)
	}
}
