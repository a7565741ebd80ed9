// Package ratelimit provides politeness limiting for outbound page requests
// to Instagram.
//
// SlidingWindow allows at most N requests in any window. ForRequestsPerMinute
// builds the window configured by rate_limit.requests_per_minute; a nil
// Limiter means unlimited.
//
//	limiter := ratelimit.ForRequestsPerMinute(cfg.RateLimit.RequestsPerMinute)
//	if limiter != nil {
//	    if err := limiter.Wait(ctx); err != nil {
//	        return err
//	    }
//	}
package ratelimit
