// Package telemetry provides observability instrumentation for lineshift.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), and Prometheus metrics behind a single handle:
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	logger := tel.Logger.NewComponentLogger("changeover")
//	logger.WithLineID("line-7").Info("matrix rebuilt")
//
// Metrics cover resolution counts by source tier, matrix build durations,
// rule rows written, validation rejections, and bulk toggle sweeps; they
// are exposed over HTTP when enabled. Tracing supports OTLP/gRPC and
// stdout exporters. Both tracer and metrics handles are nil-safe so
// library code can instrument unconditionally.
package telemetry
