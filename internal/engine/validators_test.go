package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateLuhn(t *testing.T) {
	tests := []struct {
		name       string
		cardNumber string
		wantErr    bool
	}{
		{
			name:       "valid card number",
			cardNumber: "4532015112830366",
			wantErr:    false,
		},
		{
			name:       "another valid card",
			cardNumber: "4556737586899855",
			wantErr:    false,
		},
		{
			name:       "invalid card number",
			cardNumber: "1234567890123456",
			wantErr:    true,
		},
		{
			name:       "empty card number",
			cardNumber: "",
			wantErr:    true,
		},
		{
			name:       "non-numeric card",
			cardNumber: "abcd1234efgh5678",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLuhn(tt.cardNumber)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCVV(t *testing.T) {
	tests := []struct {
		name    string
		cvv     string
		wantErr bool
	}{
		{
			name:    "valid 3-digit CVV",
			cvv:     "123",
			wantErr: false,
		},
		{
			name:    "valid 4-digit CVV",
			cvv:     "1234",
			wantErr: false,
		},
		{
			name:    "too short",
			cvv:     "12",
			wantErr: true,
		},
		{
			name:    "too long",
			cvv:     "12345",
			wantErr: true,
		},
		{
			name:    "non-numeric",
			cvv:     "abc",
			wantErr: true,
		},
		{
			name:    "empty",
			cvv:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCVV(tt.cvv)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateExpiry(t *testing.T) {
	now := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		expiryMonth int
		expiryYear  int
		wantErr     bool
	}{
		{
			name:        "valid future date",
			expiryMonth: 12,
			expiryYear:  2030,
			wantErr:     false,
		},
		{
			name:        "current month is still valid",
			expiryMonth: 6,
			expiryYear:  2026,
			wantErr:     false,
		},
		{
			name:        "invalid month - too low",
			expiryMonth: 0,
			expiryYear:  2030,
			wantErr:     true,
		},
		{
			name:        "invalid month - too high",
			expiryMonth: 13,
			expiryYear:  2030,
			wantErr:     true,
		},
		{
			name:        "expired year",
			expiryMonth: 1,
			expiryYear:  2020,
			wantErr:     true,
		},
		{
			name:        "expired month in current year",
			expiryMonth: 5,
			expiryYear:  2026,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExpiry(tt.expiryMonth, tt.expiryYear, now)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAmountBounds(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		wantErr bool
	}{
		{
			name:    "valid amount",
			amount:  1000,
			wantErr: false,
		},
		{
			name:    "minimum is valid",
			amount:  1,
			wantErr: false,
		},
		{
			name:    "maximum is valid",
			amount:  1_000_000,
			wantErr: false,
		},
		{
			name:    "zero amount invalid",
			amount:  0,
			wantErr: true,
		},
		{
			name:    "negative amount invalid",
			amount:  -100,
			wantErr: true,
		},
		{
			name:    "above maximum invalid",
			amount:  1_000_001,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmountBounds(tt.amount, 1, 1_000_000)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCurrency(t *testing.T) {
	allowed := []string{"INR", "USD"}

	assert.NoError(t, ValidateCurrency("INR", allowed))
	assert.NoError(t, ValidateCurrency("USD", allowed))
	assert.Error(t, ValidateCurrency("JPY", allowed))
	assert.Error(t, ValidateCurrency("", allowed))
	assert.Error(t, ValidateCurrency("inr", allowed))
}
