package domain

import (
	"strings"
	"testing"
)

func TestValidateRunRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     RunRequest
		wantErr string
	}{
		{"valid", RunRequest{Value: "build a todo app", ProjectID: "p-1"}, ""},
		{"empty value", RunRequest{ProjectID: "p-1"}, "Value is required"},
		{"missing project", RunRequest{Value: "x"}, "ProjectID is required"},
		{"too long", RunRequest{Value: strings.Repeat("a", 10001), ProjectID: "p-1"}, "Value is too long"},
		{"max length", RunRequest{Value: strings.Repeat("a", 10000), ProjectID: "p-1"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
