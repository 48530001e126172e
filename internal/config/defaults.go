package config

const (
	defaultAnalysisURL   = "http://127.0.0.1:8080"
	defaultSettleDelayMS = 500
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Analysis: AnalysisConfig{
			BaseURL:    defaultAnalysisURL,
			HealthGRPC: "127.0.0.1:8081",
		},
		Session: SessionConfig{SettleDelayMS: defaultSettleDelayMS},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			DesktopAppName: "mindwell",
			SoundEnable:    true,
			ErrorTimeoutMS: 4000,
		},
	}
}
