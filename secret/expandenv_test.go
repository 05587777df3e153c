package secret

import (
	"errors"
	"strings"
	"testing"
)

func mapLookup(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestExpand(t *testing.T) {
	env := mapLookup(map[string]string{"USER": "alice", "EMPTY": ""})

	tests := []struct {
		in      string
		want    string
		wantErr string
	}{
		{in: "plain", want: "plain"},
		{in: "${USER}", want: "alice"},
		{in: "$USER-x", want: "alice-x"},
		{in: "${EMPTY}", want: ""},
		{in: "$UNSET", want: ""},
		{in: "cost $$5", want: "cost $5"},
		{in: "${B_MISSING} ${A_MISSING} ${A_MISSING}", wantErr: "A_MISSING, B_MISSING"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := expand(tt.in, env)
			if tt.wantErr != "" {
				if !errors.Is(err, ErrMissingEnv) || !strings.HasSuffix(err.Error(), tt.wantErr) {
					t.Errorf("expand(%q) error = %v, want %q", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("expand(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("expand(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("XBRLMCP_TEST_VALUE", "v1")
	got, err := ExpandEnvStrict("${XBRLMCP_TEST_VALUE}")
	if err != nil || got != "v1" {
		t.Errorf("ExpandEnvStrict() = %q, %v", got, err)
	}
}
