package params

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// Validate checks the threshold ordering and bounds declared in the
// struct tags. Engine open falls back to defaults on failure.
func (c *MatchConfig) Validate() error {
	return validate.Struct(c)
}

// Validate checks the base section config. Scale presets carry their
// own support counts and are not individually validated.
func (c *DetectionConfig) Validate() error {
	return validate.Struct(c.SectionConfig)
}
