package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DOCSTORE_DRIVER", "")
	t.Setenv("BILLING_DEFAULT_PAY_RATE", "")
	t.Setenv("BILLING_PRESERVE_PAYMENTS", "")
	t.Setenv("AUTH_ENABLED", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DriverCouchDB, cfg.Store.Driver)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, 8.0, cfg.Billing.DefaultPayRate)
	assert.True(t, cfg.Billing.PreservePayments)
	assert.Equal(t, "@every 5m", cfg.Autosave.Schedule)
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())
	assert.False(t, cfg.WhatsApp.Enabled())
	assert.False(t, cfg.Sheets.Enabled())
}

func TestLoadMongoDisablesAuthByDefault(t *testing.T) {
	t.Setenv("DOCSTORE_DRIVER", "mongodb")
	t.Setenv("AUTH_ENABLED", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Auth.Enabled)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":     {"DOCSTORE_DRIVER": "redis"},
		"bad pay rate":       {"BILLING_DEFAULT_PAY_RATE": "eight"},
		"zero pay rate":      {"BILLING_DEFAULT_PAY_RATE": "0"},
		"auth without couch": {"DOCSTORE_DRIVER": "memory", "AUTH_ENABLED": "true"},
		"bad timezone":       {"TIMEZONE": "Mars/Olympus"},
		"sheets without id":  {"GOOGLE_SHEETS_CREDENTIALS_PATH": "/tmp/creds.json", "GOOGLE_SHEET_DATABASE_ID": ""},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
