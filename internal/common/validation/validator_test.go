package validation

import (
	"testing"

	"api-client/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type endpointConfig struct {
	TokenURL string `json:"token_url" validate:"required,absolute_url"`
	Schedule string `json:"schedule" validate:"omitempty,cron_expression"`
	Store    string `json:"store" validate:"oneof=memory file redis"`
	Retries  int    `json:"retries" validate:"min=1"`
}

func TestValidateStruct(t *testing.T) {
	valid := endpointConfig{
		TokenURL: "https://oauth2.example.com/token",
		Schedule: "@every 5m",
		Store:    "redis",
		Retries:  3,
	}
	assert.NoError(t, ValidateStruct(valid))

	t.Run("single failure", func(t *testing.T) {
		cfg := valid
		cfg.TokenURL = ""
		err := ValidateStruct(cfg)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
		assert.Contains(t, err.Error(), "field 'token_url' is required")
	})

	t.Run("relative url rejected", func(t *testing.T) {
		cfg := valid
		cfg.TokenURL = "/token"
		err := ValidateStruct(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "absolute http(s) URL")
	})

	t.Run("multiple failures", func(t *testing.T) {
		cfg := valid
		cfg.Schedule = "every tuesday"
		cfg.Store = "s3"
		cfg.Retries = 0
		err := ValidateStruct(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
		assert.Contains(t, err.Error(), "cron expression")
		assert.Contains(t, err.Error(), "must be one of: memory file redis")
		assert.Contains(t, err.Error(), "must be at least 1")
	})
}

func TestFieldErrors(t *testing.T) {
	v := New()
	assert.Nil(t, v.FieldErrors(endpointConfig{
		TokenURL: "http://localhost:8080/token",
		Store:    "memory",
		Retries:  1,
	}))

	fieldErrors := v.FieldErrors(endpointConfig{Store: "memory", Retries: 1})
	require.Len(t, fieldErrors, 1)
	assert.Equal(t, "token_url", fieldErrors[0].Field)
	assert.Equal(t, "required", fieldErrors[0].Tag)
}

func TestValidateVar(t *testing.T) {
	assert.NoError(t, ValidateVar("*/10 * * * *", "cron_expression"))
	assert.Error(t, ValidateVar("not a schedule", "cron_expression"))
	assert.NoError(t, ValidateVar("https://www.googleapis.com/", "absolute_url"))
	assert.Error(t, ValidateVar("mailto:someone", "absolute_url"))
}
