package passphrase

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func testSource(env map[string]string, input string, interactive bool) (*Source, *int) {
	reads := 0
	s := NewSource("RENT_KEY_PASS", "")
	s.lookup = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	s.read = func() ([]byte, bool, error) {
		reads++
		return []byte(input), interactive, nil
	}
	s.out = &bytes.Buffer{}
	return s, &reads
}

func TestEnvironmentWins(t *testing.T) {
	s, reads := testSource(map[string]string{"RENT_KEY_PASS": " secret "}, "typed", true)
	got, err := s.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != " secret " {
		t.Fatalf("expected verbatim env value, got %q", got)
	}
	if *reads != 0 {
		t.Fatalf("terminal should not be read")
	}
}

func TestEmptyEnvironmentRejected(t *testing.T) {
	s, _ := testSource(map[string]string{"RENT_KEY_PASS": "  "}, "typed", true)
	if _, err := s.Get(); err == nil || !strings.Contains(err.Error(), "set but empty") {
		t.Fatalf("expected empty env error, got %v", err)
	}
}

func TestPromptIsCached(t *testing.T) {
	s, reads := testSource(nil, "typed", true)
	for i := 0; i < 3; i++ {
		got, err := s.Get()
		if err != nil || got != "typed" {
			t.Fatalf("get #%d: %q %v", i, got, err)
		}
	}
	if *reads != 1 {
		t.Fatalf("expected one prompt, got %d", *reads)
	}
}

func TestNoTerminal(t *testing.T) {
	s, _ := testSource(nil, "", false)
	if _, err := s.Get(); err == nil || !strings.Contains(err.Error(), "RENT_KEY_PASS") {
		t.Fatalf("expected hint about env var, got %v", err)
	}
}

func TestBlankPromptRejected(t *testing.T) {
	s, _ := testSource(nil, "   ", true)
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected blank passphrase to fail")
	}
}

func TestReadFailure(t *testing.T) {
	s := NewSource("", "")
	s.lookup = func(string) (string, bool) { return "", false }
	s.read = func() ([]byte, bool, error) { return nil, true, errors.New("eof") }
	s.out = &bytes.Buffer{}
	if _, err := s.Get(); err == nil || !strings.Contains(err.Error(), "eof") {
		t.Fatalf("expected read error, got %v", err)
	}
}
