package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// ProviderConfig configures the metrics SDK provider.
type ProviderConfig struct {
	// ServiceName defaults to "plexusd". InitProvider does not attach it to
	// the meter provider's resource.
	ServiceName string
}

// InitProvider builds a sdkmetric.MeterProvider backed by a Prometheus
// exporter (scraped via promhttp.Handler over the plexusd HTTP surface),
// registers it as the global OTel meter provider, and returns a shutdown
// func to call from main() on exit.
func InitProvider(cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "plexusd"
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExp))
	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}
