// Package telemetry — структурированное логирование (slog) и
// метрики Prometheus для супервизора и воркеров.
package telemetry
