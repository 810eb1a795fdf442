package plugins

import (
	"fmt"
	"time"

	"github.com/0xReLogic/handview/internal/ratelimiter"
)

// Config example:
//
//	- name: ratelimit
//	  config:
//	    max_tokens: 20
//	    refill_ms: 500
func init() {
	RegisterBuiltin("ratelimit", func(name string, cfg map[string]interface{}) (Middleware, func(), error) {
		maxTokens, err := intOption(cfg, "max_tokens", 100)
		if err != nil {
			return nil, nil, err
		}
		refillMs, err := intOption(cfg, "refill_ms", 100)
		if err != nil {
			return nil, nil, err
		}
		if maxTokens <= 0 || refillMs <= 0 {
			return nil, nil, fmt.Errorf("max_tokens and refill_ms must be positive")
		}

		refill := time.Duration(refillMs) * time.Millisecond
		rl := ratelimiter.NewTokenBucketRateLimiter(maxTokens, refill)
		return Middleware(ratelimiter.RateLimitMiddleware(rl, refill)), rl.Stop, nil
	})
}
