package analyze

import (
	"context"
	"log"
	"strings"
	"time"
)

// CallWithGuard retries call when it yields blank content, up to maxTries
// total attempts with a fixed delay between them. Blank responses are a
// different failure class than transport errors (the provider accepted the
// request and returned nothing), so the delay is fixed rather than
// exponential. Call errors are absorbed into the same retry loop. On
// exhaustion it returns ("", false); the caller substitutes a default payload.
func CallWithGuard(ctx context.Context, maxTries int, delay time.Duration, call func(ctx context.Context) (string, error)) (string, bool) {
	for attempt := 1; attempt <= maxTries; attempt++ {
		out, err := call(ctx)
		if err == nil && strings.TrimSpace(out) != "" {
			return out, true
		}
		if err != nil {
			log.Printf("analysis call attempt %d/%d failed: %v", attempt, maxTries, err)
		} else {
			log.Printf("analysis call attempt %d/%d returned empty content", attempt, maxTries)
		}
		if attempt < maxTries {
			if sleepContext(ctx, delay) != nil {
				return "", false
			}
		}
	}
	return "", false
}
