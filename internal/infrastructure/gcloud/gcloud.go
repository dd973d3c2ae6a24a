// Package gcloud holds what the Drive and Cloud Storage adapters share:
// client credentials and error classification.
package gcloud

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kirillkom/site-mapper/internal/core/domain"
	"github.com/kirillkom/site-mapper/internal/infrastructure/resilience"
)

// ClientOptions selects explicit service account credentials when a file is
// given, and application default credentials otherwise.
func ClientOptions(credentialsFile string, scopes ...string) []option.ClientOption {
	opts := make([]option.ClientOption, 0, 2)
	if path := strings.TrimSpace(credentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}
	if len(scopes) > 0 {
		opts = append(opts, option.WithScopes(scopes...))
	}
	return opts
}

// IsTemporary reports rate limiting, server-side failures and network errors.
func IsTemporary(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests ||
			apiErr.Code == http.StatusRequestTimeout ||
			apiErr.Code >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func ClassifyError(err error) resilience.ErrorClassification {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if domain.IsKind(err, domain.ErrTemporary) || IsTemporary(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// Wrap tags temporary failures with domain.ErrTemporary.
func Wrap(operation string, err error) error {
	if err == nil {
		return nil
	}
	if IsTemporary(err) && !domain.IsKind(err, domain.ErrTemporary) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
