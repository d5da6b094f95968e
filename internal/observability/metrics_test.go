package observability

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sandeepkv93/course-identity-service/internal/config"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func recordEveryMetric(ctx context.Context) {
	RecordAuthLogin(ctx, "local", "success")
	RecordAuthRefresh(ctx, "success")
	RecordAuthLogout(ctx, "success")
	RecordAuthRequestDuration(ctx, "login", "success", 10*time.Millisecond)
	RecordAccessTokenValidation(ctx, "ok", "cookie")
	RecordActivationEvent(ctx, "complete", "invalid_code")
	RecordMailDelivery(ctx, "activation-mail", "sent")
	RecordSessionCacheEvent(ctx, "set", "superseded")
	RecordAuthorizationEvent(ctx, "user", "deny")
	RecordRateLimitDecision(ctx, "auth", "allow", "distributed", "ip")
	RecordRateLimitRetryAfter(ctx, "auth", "limit", time.Second)
	RecordUserProfileEvent(ctx, "update_info", "success")
	RecordAdminUserMutation(ctx, "update_role", "success")
	RecordRepositoryOperation(ctx, "user", "list", "success")
	RecordDatabaseStartupEvent(ctx, "connect", "success")
	RecordDatabaseStartupDuration(ctx, "migrate", 15*time.Millisecond)
	RecordToolCommandRun(ctx, "identityctl", "migrate", "success")
	RecordToolCommandDuration(ctx, "identityctl", "seed", "success", 30*time.Millisecond)
	RecordHealthCheckResult(ctx, "db", "ready")
	RecordHealthCheckDuration(ctx, "db", 5*time.Millisecond)
}

func TestRecordMetricHelpersNoPanicWhenUninitialized(t *testing.T) {
	metricsMu.Lock()
	appMetrics = nil
	metricsMu.Unlock()

	recordEveryMetric(context.Background())
}

func TestRecordMetricHelpersEmitExpectedLabelCardinality(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	m, err := newAppMetrics(provider.Meter("observability-test"))
	if err != nil {
		t.Fatalf("create metrics: %v", err)
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()
	defer func() {
		metricsMu.Lock()
		appMetrics = nil
		metricsMu.Unlock()
	}()

	recordEveryMetric(ctx)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	expected := map[string]int{
		"auth.login.attempts":                 2,
		"auth.refresh.attempts":               1,
		"auth.logout.attempts":                1,
		"auth.request.duration":               2,
		"auth.access_token.validation.events": 2,
		"auth.activation.events":              2,
		"mail.delivery.events":                2,
		"session.cache.events":                2,
		"auth.authorization.events":           2,
		"http.rate_limit.decisions":           4,
		"http.rate_limit.retry_after":         2,
		"user.profile.events":                 2,
		"admin.user.mutations":                2,
		"repository.operations":               3,
		"database.startup.events":             2,
		"database.startup.duration":           1,
		"tool.command.runs":                   3,
		"tool.command.duration":               3,
		"health.check.results":                2,
		"health.check.duration":               1,
	}

	observed := collectLabelCardinality(t, rm)
	for metricName, want := range expected {
		got, ok := observed[metricName]
		if !ok {
			t.Fatalf("missing metric datapoint for %s", metricName)
		}
		if got != want {
			t.Fatalf("metric %s label cardinality mismatch: got=%d want=%d", metricName, got, want)
		}
	}
}

func TestInitMetricsDisabledReturnsProvider(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{OTELMetricsEnabled: false}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mp, err := InitMetrics(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("init metrics disabled: %v", err)
	}
	if mp == nil {
		t.Fatal("expected non-nil meter provider")
	}
	_ = mp.Shutdown(ctx)
}

func collectLabelCardinality(t *testing.T, rm metricdata.ResourceMetrics) map[string]int {
	t.Helper()
	out := map[string]int{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Attributes.Len()
				}
			case metricdata.Histogram[float64]:
				if len(data.DataPoints) > 0 {
					out[m.Name] = data.DataPoints[0].Attributes.Len()
				}
			}
		}
	}
	return out
}
