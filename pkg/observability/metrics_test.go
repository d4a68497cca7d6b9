package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAccessDecision(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAccessDecision("job_template", "change", false)
	m.RecordAccessDecision("job_template", "change", false)
	m.RecordAccessDecision("job_template", "read", true)

	denied := testutil.ToFloat64(m.AccessDecisionsTotal.WithLabelValues("job_template", "change", "false"))
	assert.Equal(t, 2.0, denied)
	allowed := testutil.ToFloat64(m.AccessDecisionsTotal.WithLabelValues("job_template", "read", "true"))
	assert.Equal(t, 1.0, allowed)
}

func TestRecordRoleCache(t *testing.T) {
	m := NewMetrics(nil)

	m.RecordRoleCacheHit("local")
	m.RecordRoleCacheHit("redis")
	m.RecordRoleCacheMiss("redis")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoleCacheHitsTotal.WithLabelValues("local")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoleCacheMissesTotal.WithLabelValues("redis")))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordHTTPRequest("GET", "/api/v1/access/read", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "helmsman_http_requests_total"))
	assert.True(t, strings.Contains(body, `path="/api/v1/access/read"`))
}
