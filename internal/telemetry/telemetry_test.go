package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/italolelis/batchdl/internal/logctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNilTelemetryIsUsable(t *testing.T) {
	var tel *Telemetry

	ctx := context.Background()
	called := 0

	err := tel.InstrumentBatch(ctx, func(ctx context.Context) error {
		called++

		return tel.InstrumentTransfer(ctx, func(ctx context.Context) error {
			called++
			tel.RecordBytes(ctx, 10)

			return nil
		})
	})

	require.NoError(t, err)
	assert.Equal(t, 2, called)
	assert.NoError(t, tel.Shutdown(ctx))
	assert.NotNil(t, tel.Tracer())
}

func TestDisabledTelemetryReturnsNil(t *testing.T) {
	tel, err := New(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, tel)
}

func TestInstrumentationPropagatesErrors(t *testing.T) {
	tel, err := New(context.Background(), Config{Enabled: true, ServiceName: "batchdl-test"})
	require.NoError(t, err)

	defer tel.Shutdown(context.Background())

	cause := errors.New("boom")

	err = tel.InstrumentTransfer(context.Background(), func(ctx context.Context) error {
		tel.RecordBytes(ctx, 42)

		return cause
	})
	assert.ErrorIs(t, err, cause)

	err = tel.InstrumentDBOperation(context.Background(), "insert", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)

	err = tel.InstrumentClientOperation(context.Background(), "putio", "file_url", func(ctx context.Context) error { return cause })
	assert.ErrorIs(t, err, cause)

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bytes_downloaded")
}

func TestStatusOf(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	assert.Equal(t, "success", statusOf(ctx, nil))
	assert.Equal(t, "error", statusOf(ctx, errors.New("x")))

	cancel()
	assert.Equal(t, "cancelled", statusOf(ctx, errors.New("x")))
}

func TestHTTPLoggingLevels(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"server error", http.StatusInternalServerError, "ERROR"},
		{"client error", http.StatusNotFound, "WARN"},
		{"ok", http.StatusOK, "DEBUG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			var tel *Telemetry

			h := tel.HTTPLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			req = req.WithContext(logctx.WithLogger(req.Context(), logger))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.True(t, strings.Contains(buf.String(), `"level":"`+tt.wantLevel+`"`), buf.String())
		})
	}
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "3xx", statusClass(302))
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "5xx", statusClass(503))
	assert.Equal(t, "unknown", statusClass(100))
}

func TestInstrumentClientOperationOpensOneSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	defer tp.Shutdown(context.Background())

	tel := &Telemetry{
		tracer: tp.Tracer("test"),
		meter:  sdkmetric.NewMeterProvider().Meter("test"),
	}
	require.NoError(t, tel.initializeMetrics())

	err := tel.InstrumentClientOperation(context.Background(), "putio", "file_url", func(context.Context) error {
		return nil
	})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "client_file_url", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("client.type", "putio"))
	assert.Contains(t, spans[0].Attributes(), attribute.String("client.operation", "file_url"))
	assert.Contains(t, spans[0].Attributes(), attribute.String("component", "source_client"))
}
