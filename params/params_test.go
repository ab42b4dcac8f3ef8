package params

import "testing"

func TestMatchConfigValidate(t *testing.T) {
	good := *DefaultMatchConfig
	if err := good.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	inverted := *DefaultMatchConfig
	inverted.PerfectThreshold = 250
	inverted.ZeroThreshold = 30
	if err := inverted.Validate(); err == nil {
		t.Error("zero threshold below perfect threshold must not validate")
	}

	zero := *DefaultMatchConfig
	zero.PerfectThreshold = 0
	if err := zero.Validate(); err == nil {
		t.Error("zero perfect threshold must not validate")
	}
}

func TestDetectionConfigValidate(t *testing.T) {
	if err := DefaultDetectionConfig().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	bad := DefaultDetectionConfig()
	bad.ProximityThreshold = -1
	if err := bad.Validate(); err == nil {
		t.Error("negative proximity threshold must not validate")
	}
}
