package sql

import "testing"

func TestCheckTextForInjection(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		expectSQLi   bool
		wantFragment string
	}{
		{name: "empty", text: ""},
		{name: "whitespace", text: "  \n "},
		{name: "plain prose", text: "This is a normal description with spaces"},
		{name: "multi-line prose", text: "laptop computers\nThis is a normal description with spaces"},
		{
			name:         "tautology",
			text:         "' OR '1'='1",
			expectSQLi:   true,
			wantFragment: "' OR '1'='1",
		},
		{
			name:         "stacked drop on its own line",
			text:         "monthly revenue\n'; DROP TABLE users--",
			expectSQLi:   true,
			wantFragment: "'; DROP TABLE users--",
		},
		{
			name:         "union select",
			text:         "1 UNION SELECT * FROM passwords",
			expectSQLi:   true,
			wantFragment: "1 UNION SELECT * FROM passwords",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckTextForInjection("context", tt.text)
			if !tt.expectSQLi {
				if result != nil {
					t.Errorf("unexpected detection: fingerprint=%q fragment=%q", result.Fingerprint, result.Fragment)
				}
				return
			}
			if result == nil {
				t.Fatalf("expected injection to be detected in %q", tt.text)
			}
			if !result.IsSQLi {
				t.Error("expected IsSQLi to be true")
			}
			if result.Fingerprint == "" {
				t.Error("expected a fingerprint")
			}
			if result.Field != "context" {
				t.Errorf("Field = %q, want context", result.Field)
			}
			if result.Fragment != tt.wantFragment {
				t.Errorf("Fragment = %q, want %q", result.Fragment, tt.wantFragment)
			}
		})
	}
}
