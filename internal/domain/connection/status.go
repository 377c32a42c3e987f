package connection

import (
	"strings"

	"soldo/internal/domain/account"
)

// MapProviderStatus normalizes a provider-reported status string into
// the closed Status vocabulary. An empty input maps to StatusGood only
// when the connection has no status yet; otherwise the existing status
// is kept. An unrecognized non-empty string maps to StatusError: a
// free-form provider string must never reach domain state.
func MapProviderStatus(raw string, existing Status) Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "":
		if existing == "" {
			return StatusGood
		}
		return existing
	case "HEALTHY", "GOOD":
		return StatusGood
	case "ITEM_LOGIN_REQUIRED", "LOGIN_REQUIRED":
		return StatusItemLoginRequired
	case "PENDING_EXPIRATION":
		return StatusPendingExpiration
	case "PENDING_METADATA_UPDATE":
		return StatusPendingMetadataUpdate
	case "ERROR":
		return StatusError
	default:
		return StatusError
	}
}

// MapErrorCode maps a provider error code to the connection status it
// implies. Unknown codes degrade to StatusError.
func MapErrorCode(code string) Status {
	switch NormalizeErrorCode(code) {
	case "":
		return StatusGood
	case "ITEM_LOGIN_REQUIRED", "INVALID_CREDENTIALS", "USER_PERMISSION_REVOKED":
		return StatusItemLoginRequired
	case "PENDING_EXPIRATION":
		return StatusPendingExpiration
	case "PENDING_METADATA_UPDATE":
		return StatusPendingMetadataUpdate
	default:
		return StatusError
	}
}

// NormalizeErrorCode uppercases and trims a provider error code. Codes
// are never stored verbatim otherwise.
func NormalizeErrorCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// MapAccountType converts provider account type/subtype pairs into the
// local account type vocabulary.
func MapAccountType(providerType, subtype string) account.Type {
	switch strings.ToLower(strings.TrimSpace(providerType)) {
	case "investment":
		return account.TypeInvestment
	case "credit":
		return account.TypeCredit
	case "depository":
		if strings.ToLower(strings.TrimSpace(subtype)) == "savings" {
			return account.TypeSavings
		}
		return account.TypeChecking
	default:
		return account.TypeOther
	}
}
