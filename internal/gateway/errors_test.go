package gateway

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", NewError(KindThingNotFound, "x"), KindThingNotFound},
		{"wrapped", fmt.Errorf("wrapped: %w", NewError(KindThingNotFound, "x")), KindThingNotFound},
		{"plain", errors.New("plain"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("%s: KindOf() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAsError_HidesCause(t *testing.T) {
	cause := errors.New("sqlite: database is locked")
	gerr := AsError(cause)

	if gerr.Kind != KindInternal {
		t.Errorf("Kind = %v, want %v", gerr.Kind, KindInternal)
	}
	if strings.Contains(gerr.Message, "sqlite") {
		t.Errorf("Message %q leaks the cause", gerr.Message)
	}
	if !errors.Is(gerr, cause) {
		t.Error("AsError should keep the cause for errors.Is")
	}
}

func TestKinds_Distinct(t *testing.T) {
	seen := map[Kind]bool{}
	for _, k := range Kinds {
		if seen[k] {
			t.Errorf("duplicate kind %s", k)
		}
		seen[k] = true
	}
}
