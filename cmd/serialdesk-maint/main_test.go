package main

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestExecute(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("APP_ENV", "test")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"report", []string{"report"}, 0},
		{"diagnostics", []string{"diagnostics"}, 0},
		{"unknown task", []string{"drop-everything"}, 1},
		{"missing task", nil, 2},
		{"bad flag", []string{"-timeout=soon", "report"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if got := execute(tt.args, &out); got != tt.want {
				t.Fatalf("exit = %d, want %d", got, tt.want)
			}
			if tt.want == 0 && !json.Valid(out.Bytes()) {
				t.Errorf("output is not JSON: %q", out.String())
			}
		})
	}
}

func TestExecute_MissingMongoURIFails(t *testing.T) {
	t.Setenv("DB_DRIVER", "mongo")
	t.Setenv("MONGODB_URI", "")
	t.Setenv("APP_ENV", "test")

	var out bytes.Buffer
	if got := execute([]string{"clean-episodes"}, &out); got != 1 {
		t.Errorf("exit = %d, want 1", got)
	}
	if out.Len() != 0 {
		t.Errorf("wrote %q on failure", out.String())
	}
}
