package control

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/negwm/negwm/internal/engine"
	"github.com/negwm/negwm/internal/metrics"
)

const (
	// SocketFileName is the filename of the control socket within the runtime dir.
	SocketFileName = "control.sock"

	// ModuleDaemon addresses verbs that concern the whole daemon.
	ModuleDaemon = "negwm"

	// Response statuses.
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrMalformedRequest is returned for request lines that cannot be tokenized.
var ErrMalformedRequest = errors.New("malformed request")

// Request is one control line: `<module> <verb> <arg>*`.
type Request struct {
	Module string   `json:"module"`
	Verb   string   `json:"verb"`
	Args   []string `json:"args,omitempty"`
}

// Response represents a control API response.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// StatusReport is the payload of `negwm status`.
type StatusReport struct {
	Modules []string           `json:"modules"`
	Metrics metrics.Snapshot   `json:"metrics"`
	History []engine.JobRecord `json:"history,omitempty"`
}

// ModuleInfo mirrors the list payload of a module.
type ModuleInfo = engine.ModuleInfo

// DefaultSocketPath returns the expected location of the negwm control socket.
func DefaultSocketPath() (string, error) {
	if env := os.Getenv("NEGWM_CONTROL_SOCKET"); env != "" {
		return env, nil
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	base := runtimeDir
	if base == "" {
		base = os.TempDir()
		if base == "" {
			return "", errors.New("no runtime directory available")
		}
	}
	return filepath.Join(base, "negwm", SocketFileName), nil
}

// ParseRequest splits a request line into module, verb and arguments.
// Whitespace inside quotes does not split; a token wrapped entirely in double
// quotes loses them, other quotes are kept for the selector parser.
func ParseRequest(line string) (Request, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return Request{}, err
	}
	if len(tokens) < 2 {
		return Request{}, fmt.Errorf("%w: expected <module> <verb> [args...], got %q", ErrMalformedRequest, strings.TrimSpace(line))
	}
	req := Request{Module: tokens[0], Verb: tokens[1]}
	if len(tokens) > 2 {
		req.Args = tokens[2:]
	}
	return req, nil
}

func tokenize(line string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		inToken bool
	)
	flush := func() {
		if !inToken {
			return
		}
		tok := current.String()
		if len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"' {
			tok = tok[1 : len(tok)-1]
		}
		tokens = append(tokens, tok)
		current.Reset()
		inToken = false
	}
	for _, r := range line {
		switch {
		case quote != 0:
			current.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
			inToken = true
			current.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		default:
			inToken = true
			current.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("%w: unterminated %c quote", ErrMalformedRequest, quote)
	}
	flush()
	return tokens, nil
}

// Line renders the request in wire form, quoting arguments that would
// otherwise split.
func (r Request) Line() string {
	parts := make([]string, 0, len(r.Args)+2)
	parts = append(parts, r.Module, r.Verb)
	for _, arg := range r.Args {
		if arg == "" || (strings.IndexFunc(arg, unicode.IsSpace) >= 0 && !strings.ContainsAny(arg, `"'`)) {
			arg = `"` + arg + `"`
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}
