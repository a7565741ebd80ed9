// Package retry provides exponential backoff and retry logic for transient
// failures, used by the media fetcher for CDN downloads.
//
// Errors from pkg/errors are retried when their type is network, rate_limit
// or server_error; untyped errors are treated as transport failures and
// retried; context cancellation is never retried.
//
//	size, err := retry.DoWithResult(ctx, func(ctx context.Context) (int64, error) {
//		return fetchOnce(ctx, url)
//	}, retry.HTTPConfig(3, log))
//
// HTTPConfig picks the backoff per error type: short exponential delays for
// network errors, longer ones for rate limiting and 5xx responses.
package retry
