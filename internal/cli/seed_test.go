package cli

import (
	"strings"
	"testing"
)

func TestSeedRejectsBadFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing source", []string{"seed"}, "--source is required"},
		{"zero count", []string{"seed", "--source", "src-a", "--count", "0"}, "--count must be positive"},
		// Flag values stick to the command between runs, so reset --count.
		{"zero batch size", []string{"seed", "--source", "src-a", "--count", "100", "--batch-size", "0"}, "--batch-size must be positive"},
		{"negative batch size", []string{"seed", "--source", "src-a", "--count", "100", "--batch-size", "-5"}, "--batch-size must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rootCmd.SetArgs(tt.args)
			err := rootCmd.Execute()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}
