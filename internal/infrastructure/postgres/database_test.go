package postgres

import (
	"testing"

	"soldo/internal/domain/account"
	"soldo/internal/domain/connection"
	"soldo/internal/domain/transaction"
	"soldo/internal/domain/user"
	"soldo/internal/domain/webhook"
)

// The repositories must be constructible from the traced *DB wrapper so every
// query goes through its instrumented QueryContext/QueryRowContext/ExecContext.
var (
	_ user.Repository        = NewUserRepository(&DB{})
	_ connection.Repository  = NewConnectionRepository(&DB{})
	_ account.Repository     = NewAccountRepository(&DB{})
	_ account.LinkRepository = NewLinkRepository(&DB{})
	_ transaction.Repository = NewTransactionRepository(&DB{})
	_ webhook.Repository     = NewWebhookEventRepository(&DB{})
)

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "parameterized query is untouched",
			query: "SELECT id FROM users WHERE email = $1",
			want:  "SELECT id FROM users WHERE email = $1",
		},
		{
			name:  "string literal is masked",
			query: "SELECT id FROM users WHERE email = 'alice@example.com'",
			want:  "SELECT id FROM users WHERE email = '?'",
		},
		{
			name:  "escaped quote stays inside the mask",
			query: "SELECT 1 WHERE name = 'O''Brien'",
			want:  "SELECT ? WHERE name = '?'",
		},
		{
			name:  "bare numeric literal is masked",
			query: "SELECT id FROM accounts WHERE user_id = 42",
			want:  "SELECT id FROM accounts WHERE user_id = ?",
		},
		{
			name:  "placeholder digits survive",
			query: "UPDATE connections SET cursor = $1 WHERE id = $2",
			want:  "UPDATE connections SET cursor = $1 WHERE id = $2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeQuery(tt.query); got != tt.want {
				t.Errorf("sanitizeQuery(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestExtractSQLVerb(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"SELECT id FROM users", "SELECT"},
		{"  insert into users VALUES ($1)", "INSERT"},
		{"DELETE", "DELETE"},
	}

	for _, tt := range tests {
		if got := extractSQLVerb(tt.query); got != tt.want {
			t.Errorf("extractSQLVerb(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}
