package tracing

import (
	"context"
	"testing"
	"time"
)

func shutdownProvider(t *testing.T, p *Provider) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNewProvider_DisabledIsNoop(t *testing.T) {
	provider, err := NewProvider(Config{ServiceName: "afterdark-api", Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if provider == nil {
		t.Fatal("provider is nil")
	}
	if provider.IsEnabled() {
		t.Error("disabled config produced an enabled provider")
	}
}

func TestNewProvider_ConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing service name", Config{Enabled: true, SamplingRate: 0.1}},
		{"negative sampling rate", Config{ServiceName: "afterdark-api", Enabled: true, SamplingRate: -0.1}},
		{"sampling rate above one", Config{ServiceName: "afterdark-api", Enabled: true, SamplingRate: 1.5}},
		{"unknown exporter", Config{ServiceName: "afterdark-api", Enabled: true, SamplingRate: 0.1, ExporterType: "jaeger-thrift"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(tt.cfg); err == nil {
				t.Error("expected a config error, got nil")
			}
		})
	}
}

func TestNewProvider_Exporters(t *testing.T) {
	tests := []struct {
		name         string
		exporterType string
		endpoint     string
		samplingRate float64
	}{
		{"otlp-http", "otlp-http", "localhost:4318", 0.1},
		{"otlp-grpc", "otlp-grpc", "localhost:4317", 1.0},
		{"default exporter", "", "", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(Config{
				ServiceName:  "afterdark-api",
				Enabled:      true,
				Environment:  "test",
				ExporterType: tt.exporterType,
				OTLPEndpoint: tt.endpoint,
				SamplingRate: tt.samplingRate,
				InsecureMode: true,
			})
			if err != nil {
				t.Fatalf("NewProvider: %v", err)
			}
			if !provider.IsEnabled() {
				t.Error("provider should be enabled")
			}
			shutdownProvider(t, provider)
		})
	}
}

func TestProvider_TracerStartsSpans(t *testing.T) {
	provider, err := NewProvider(Config{
		ServiceName:  "afterdark-api",
		Enabled:      true,
		Environment:  "test",
		ExporterType: "otlp-http",
		SamplingRate: 1.0,
		InsecureMode: true,
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	defer shutdownProvider(t, provider)

	tracer := provider.Tracer("feed")
	if tracer == nil {
		t.Fatal("Tracer returned nil")
	}
	_, span := tracer.Start(context.Background(), "rank_feed")
	if span == nil {
		t.Fatal("Start returned a nil span")
	}
	span.End()
}

func TestProvider_ShutdownWithoutInit(t *testing.T) {
	var provider Provider
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := provider.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown on zero-value provider: %v", err)
	}
}
