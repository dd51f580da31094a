package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_MissingAPIKey(t *testing.T) {
	var cfg Config
	cfg.NowPayments.IPNSecret = "secret"

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestValidate_MissingIPNSecret(t *testing.T) {
	var cfg Config
	cfg.NowPayments.APIKey = "key"

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "IPN secret")
}

func TestValidate_Complete(t *testing.T) {
	var cfg Config
	cfg.NowPayments.APIKey = "key"
	cfg.NowPayments.IPNSecret = "secret"

	assert.NoError(t, cfg.Validate())
}
