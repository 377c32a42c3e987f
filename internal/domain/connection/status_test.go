package connection

import (
	"testing"

	"soldo/internal/domain/account"
)

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		existing Status
		want     Status
	}{
		{"empty with no existing defaults to good", "", "", StatusGood},
		{"empty keeps existing status", "", StatusItemLoginRequired, StatusItemLoginRequired},
		{"healthy maps to good", "HEALTHY", StatusError, StatusGood},
		{"lowercase healthy maps to good", "healthy", "", StatusGood},
		{"login required", "ITEM_LOGIN_REQUIRED", "", StatusItemLoginRequired},
		{"pending expiration", "PENDING_EXPIRATION", "", StatusPendingExpiration},
		{"pending metadata update", "PENDING_METADATA_UPDATE", "", StatusPendingMetadataUpdate},
		{"whitespace is trimmed", "  GOOD  ", "", StatusGood},
		{"unknown non-empty fails closed to error", "SOMETHING_NEW", StatusGood, StatusError},
		{"garbage fails closed to error", "<script>", "", StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapProviderStatus(tt.raw, tt.existing); got != tt.want {
				t.Errorf("MapProviderStatus(%q, %q) = %q, want %q", tt.raw, tt.existing, got, tt.want)
			}
		})
	}
}

func TestMapErrorCode(t *testing.T) {
	tests := []struct {
		code string
		want Status
	}{
		{"", StatusGood},
		{"ITEM_LOGIN_REQUIRED", StatusItemLoginRequired},
		{"INVALID_CREDENTIALS", StatusItemLoginRequired},
		{"USER_PERMISSION_REVOKED", StatusItemLoginRequired},
		{"PENDING_EXPIRATION", StatusPendingExpiration},
		{"PENDING_METADATA_UPDATE", StatusPendingMetadataUpdate},
		{"item_login_required", StatusItemLoginRequired},
		{" pending_expiration ", StatusPendingExpiration},
		{"INSTITUTION_DOWN", StatusError},
		{"ANYTHING_ELSE", StatusError},
	}

	for _, tt := range tests {
		if got := MapErrorCode(tt.code); got != tt.want {
			t.Errorf("MapErrorCode(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"item_login_required", "ITEM_LOGIN_REQUIRED"},
		{"  Rate_Limit_Exceeded  ", "RATE_LIMIT_EXCEEDED"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeErrorCode(tt.raw); got != tt.want {
			t.Errorf("NormalizeErrorCode(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestMapAccountType(t *testing.T) {
	tests := []struct {
		providerType string
		subtype      string
		want         account.Type
	}{
		{"investment", "brokerage", account.TypeInvestment},
		{"credit", "credit card", account.TypeCredit},
		{"depository", "savings", account.TypeSavings},
		{"depository", "checking", account.TypeChecking},
		{"depository", "", account.TypeChecking},
		{"Depository", "SAVINGS", account.TypeSavings},
		{"loan", "mortgage", account.TypeOther},
		{"", "", account.TypeOther},
	}

	for _, tt := range tests {
		if got := MapAccountType(tt.providerType, tt.subtype); got != tt.want {
			t.Errorf("MapAccountType(%q, %q) = %q, want %q", tt.providerType, tt.subtype, got, tt.want)
		}
	}
}
