package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRoute(t *testing.T) {
	tests := map[string]string{
		"/api/projects.getAll":    "/api/projects.getAll",
		"/auth/magic-link/abc123": "/auth",
		"/webhooks/payment":       "/webhooks",
		"/":                       "/",
		"/healthz":                "/healthz",
	}
	for path, want := range tests {
		assert.Equal(t, want, Route(path), path)
	}
}

func TestFeedbackSubmitted(t *testing.T) {
	before := testutil.ToFloat64(feedbackSubmitted.WithLabelValues("4"))
	FeedbackSubmitted(4)
	assert.Equal(t, before+1, testutil.ToFloat64(feedbackSubmitted.WithLabelValues("4")))
}
