// Package security counts failed credential checks and flags bursts.
package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var alertCounterScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Event names observed by the services.
const (
	EventStudyPassword = "study.password"
	EventUserLogin     = "user.login"
	EventUserRegister  = "user.register"
	EventUserRefresh   = "user.refresh"

	OutcomeFail        = "fail"
	OutcomeRateLimited = "rate_limited"
)

type rule struct {
	threshold int64
	window    time.Duration
}

var failRules = map[string]rule{
	EventStudyPassword: {threshold: 5, window: 5 * time.Minute},
	EventUserLogin:     {threshold: 10, window: 5 * time.Minute},
	EventUserRegister:  {threshold: 10, window: 5 * time.Minute},
	EventUserRefresh:   {threshold: 15, window: 5 * time.Minute},
}

// AlertResult contains alert evaluation output.
type AlertResult struct {
	Triggered bool
	Count     int64
	Threshold int64
	Window    time.Duration
}

// AuditAlerter aggregates security events in Redis counters.
type AuditAlerter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewAuditAlerter returns nil when client is nil; a nil alerter observes nothing.
func NewAuditAlerter(client redis.UniversalClient, prefix string) *AuditAlerter {
	if client == nil {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "sf:alerts"
	}
	return &AuditAlerter{client: client, prefix: prefix, now: time.Now}
}

// Observe records an event for subject (an IP or study id) and reports
// whether the rule threshold was reached in the current window.
func (a *AuditAlerter) Observe(ctx context.Context, event, outcome, subject string) (AlertResult, error) {
	if a == nil {
		return AlertResult{}, nil
	}
	r, ok := alertRule(event, outcome)
	if !ok {
		return AlertResult{}, nil
	}
	windowMs := r.window.Milliseconds()
	slot := a.now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%s:%s:%d", a.prefix, sanitizeSegment(event), sanitizeSegment(outcome), sanitizeSegment(subject), slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := alertCounterScript.Run(ctx, a.client, []string{key}, windowMs).Int64()
	if err != nil {
		return AlertResult{}, fmt.Errorf("observe %s: %w", event, err)
	}
	return AlertResult{
		Triggered: count >= r.threshold,
		Count:     count,
		Threshold: r.threshold,
		Window:    r.window,
	}, nil
}

func alertRule(event, outcome string) (rule, bool) {
	switch strings.TrimSpace(outcome) {
	case OutcomeRateLimited:
		return rule{threshold: 20, window: time.Minute}, true
	case OutcomeFail:
		r, ok := failRules[strings.TrimSpace(event)]
		return r, ok
	default:
		return rule{}, false
	}
}

func sanitizeSegment(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}
	return strings.NewReplacer(":", "_", "|", "_", " ", "_").Replace(in)
}
