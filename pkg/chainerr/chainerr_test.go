package chainerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorBasics(t *testing.T) {
	err := New(CodeNotFound, "missing")
	if err.Code != CodeNotFound {
		t.Fatalf("expected code %s, got %s", CodeNotFound, err.Code)
	}
	if err.Error() != "NOT_FOUND: missing" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	cause := fmt.Errorf("disk full")
	wrapped := Persistence("save", "local-a.json", cause)
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected cause in chain")
	}
	if !strings.Contains(wrapped.Error(), "caused by: disk full") {
		t.Fatalf("unexpected message %q", wrapped.Error())
	}
	if wrapped.Details["key"] != "local-a.json" {
		t.Fatalf("expected key detail, got %#v", wrapped.Details)
	}
}

func TestIsThroughWrapping(t *testing.T) {
	base := DuplicateChain("A")
	outer := fmt.Errorf("register: %w", base)
	if !Is(outer, CodeDuplicateChain) {
		t.Fatalf("expected code through fmt wrapping")
	}
	if Is(outer, CodeLastChain) {
		t.Fatalf("unexpected code match")
	}
	if GetCode(nil) != "" {
		t.Fatalf("nil error must have empty code")
	}
	if GetCode(errors.New("plain")) != "" {
		t.Fatalf("plain error must have empty code")
	}
}

func TestConstructors(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		code Code
	}{
		{"duplicate-key", DuplicateKey("0xabc"), CodeDuplicateKey},
		{"duplicate-chain", DuplicateChain("A"), CodeDuplicateChain},
		{"last-chain", LastChain("A"), CodeLastChain},
		{"chain-not-found", ChainNotFound("A"), CodeNotFound},
		{"not-found", NotFound("account", "0x1"), CodeNotFound},
		{"decode", Decode("balanceOf", errors.New("bad")), CodeDecode},
		{"invalid", InvalidInput("negative balance"), CodeInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, tc.err.Code)
			}
			if !strings.Contains(tc.err.ToJSON(), string(tc.code)) {
				t.Fatalf("json rendering lacks code: %s", tc.err.ToJSON())
			}
		})
	}
}
