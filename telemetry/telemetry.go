// Package telemetry bootstraps the global OpenTelemetry SDK.
package telemetry

import (
	"context"
	"fmt"
	"os"

	"github.com/honeycombio/otel-config-go/otelconfig"
)

// SetupOpenTelemetry configures the global OpenTelemetry SDK from the
// environment and the given options, returning a shutdown function.
// When no OTLP endpoint is configured the exporters are disabled so
// runs without a collector stay quiet.
func SetupOpenTelemetry(ctx context.Context, opts ...otelconfig.Option) (context.Context, func(), error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		opts = append(opts,
			otelconfig.WithTracesEnabled(false),
			otelconfig.WithMetricsEnabled(false),
		)
	}

	shutdown, err := otelconfig.ConfigureOpenTelemetry(opts...)
	if err != nil {
		return ctx, func() {}, fmt.Errorf("configuring OpenTelemetry: %w", err)
	}
	return ctx, shutdown, nil
}
