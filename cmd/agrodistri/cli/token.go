package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// TokenOptions configures the hash-token command.
type TokenOptions struct {
	Cost   int
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// HashTokenCommand reads an API token from stdin and prints the bcrypt hash
// expected in API_TOKEN_HASH.
func HashTokenCommand(opts TokenOptions) int {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Cost == 0 {
		opts.Cost = bcrypt.DefaultCost
	}
	line, err := bufio.NewReader(opts.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		_, _ = fmt.Fprintf(opts.Stderr, "hash-token: read: %v\n", err)
		return 1
	}
	token := strings.TrimSpace(line)
	if len(token) < 16 {
		_, _ = fmt.Fprintln(opts.Stderr, "hash-token: token must be at least 16 characters")
		return 1
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), opts.Cost)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "hash-token: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(opts.Stdout, string(hash))
	return 0
}
