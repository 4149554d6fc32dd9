package config

// Defaults returns the built-in configuration before any YAML or
// environment overlay, mirroring the spec's documented defaults (§6).
func Defaults() Config {
	return Config{
		AutonomyEnabled:         false,
		ShadowMode:              true,
		StateWriteEnabled:       false,
		WorkflowTriggersEnabled: false,
		WebhookMaxConcurrency:   5,
		WebhookBatchSize:        50,
		ConfigCacheMaxSize:      500,
		LeadStagnantDays:        14,
		DealDecayDays:           21,
	}
}
