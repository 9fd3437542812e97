package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source resolves a keystore passphrase once, from an environment variable or
// a terminal prompt, and caches the result.
type Source struct {
	envVar string
	prompt string
	lookup func(string) (string, bool)
	read   func() ([]byte, bool, error)
	out    io.Writer

	once  sync.Once
	value string
	err   error
}

// NewSource checks envVar before prompting on stderr with prompt.
func NewSource(envVar, prompt string) *Source {
	if strings.TrimSpace(prompt) == "" {
		prompt = "Enter keystore passphrase: "
	}
	return &Source{
		envVar: strings.TrimSpace(envVar),
		prompt: prompt,
		lookup: os.LookupEnv,
		read:   readTerminal,
		out:    os.Stderr,
	}
}

func readTerminal() ([]byte, bool, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, false, nil
	}
	b, err := term.ReadPassword(fd)
	return b, true, err
}

// Get returns the passphrase. An environment value is used verbatim;
// whitespace-only passphrases are rejected either way.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := s.lookup(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}

		fmt.Fprint(s.out, s.prompt)
		raw, interactive, err := s.read()
		if interactive {
			fmt.Fprintln(s.out)
		}
		switch {
		case !interactive && s.envVar != "":
			s.err = fmt.Errorf("keystore passphrase required; set %s or run interactively", s.envVar)
			return
		case !interactive:
			s.err = errors.New("keystore passphrase required and no terminal available")
			return
		case err != nil:
			s.err = fmt.Errorf("failed to read passphrase: %w", err)
			return
		}

		passphrase := string(raw)
		if strings.TrimSpace(passphrase) == "" {
			s.err = errors.New("keystore passphrase cannot be empty")
			return
		}
		s.value = passphrase
	})
	return s.value, s.err
}
