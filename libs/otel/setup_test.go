package otelx

import "testing"

func TestConfigFromEnv(t *testing.T) {
	env := map[string]string{
		"OTEL_ENABLED":        "TRUE",
		"OTEL_SAMPLING_RATIO": "0.25",
		"DEPLOY_ENV":          "staging",
	}
	orig := lookupEnv
	lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = orig })

	cfg := ConfigFromEnv("booking-service")
	if !cfg.Enabled || cfg.SampleRatio != 0.25 || cfg.Environment != "staging" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.OTLPEndpoint != "jaeger:4317" {
		t.Fatalf("unexpected endpoint default: %q", cfg.OTLPEndpoint)
	}
}

func TestParseRatio(t *testing.T) {
	for raw, want := range map[string]float64{"0": 0, "0.5": 0.5, "1.5": 1, "-1": 1, "x": 1} {
		if got := parseRatio(raw); got != want {
			t.Fatalf("parseRatio(%q) = %v, want %v", raw, got, want)
		}
	}
}
