package libsql

import (
	"testing"

	"github.com/sqlseq/sqlseq/internal/database"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      database.ConnectionConfig
		expected string
		wantErr  bool
	}{
		{
			name:     "token from password",
			cfg:      database.ConnectionConfig{ID: "t", URL: "libsql://reports-acme.turso.io", Password: "tok"},
			expected: "libsql://reports-acme.turso.io?authToken=tok",
		},
		{
			name: "property wins over password",
			cfg: database.ConnectionConfig{
				ID:         "t",
				URL:        "libsql://reports-acme.turso.io",
				Password:   "tok",
				Properties: map[string]string{"authToken": "prop"},
			},
			expected: "libsql://reports-acme.turso.io?authToken=prop",
		},
		{
			name:     "no token",
			cfg:      database.ConnectionConfig{ID: "t", URL: "libsql://reports-acme.turso.io"},
			expected: "libsql://reports-acme.turso.io",
		},
		{
			name:    "missing host",
			cfg:     database.ConnectionConfig{ID: "t", URL: "reports"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewDriver().DSN(tt.cfg, "main")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DSN failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("DSN = %q, want %q", got, tt.expected)
			}
		})
	}
}
