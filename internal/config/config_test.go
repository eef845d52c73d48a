package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckoutValidateExpiry(t *testing.T) {
	tests := []struct {
		name    string
		cfg     CheckoutConfig
		wantErr bool
	}{
		{
			name: "defaults",
			cfg:  CheckoutConfig{ProviderTimeout: 10 * time.Second, SessionTTL: 30 * time.Minute, PendingGrace: 15 * time.Minute},
		},
		{
			name:    "session shorter than the card provider allows",
			cfg:     CheckoutConfig{ProviderTimeout: 10 * time.Second, SessionTTL: 10 * time.Minute, PendingGrace: 15 * time.Minute},
			wantErr: true,
		},
		{
			name:    "session longer than a day",
			cfg:     CheckoutConfig{ProviderTimeout: 10 * time.Second, SessionTTL: 48 * time.Hour, PendingGrace: 15 * time.Minute},
			wantErr: true,
		},
		{
			name:    "grace shorter than the provider call",
			cfg:     CheckoutConfig{ProviderTimeout: 10 * time.Second, SessionTTL: 30 * time.Minute, PendingGrace: time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateExpiry()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
