package wallet

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/term"
)

// TerminalPrompter asks for the keystore passphrase on the controlling terminal.
type TerminalPrompter struct{}

func (TerminalPrompter) Passphrase(account common.Address) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available to confirm the connection")
	}

	_, _ = fmt.Fprintf(os.Stderr, "Unlock %s to connect (empty to decline): ", account.Hex())
	pw, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(os.Stderr) // best-effort newline
	if err != nil {
		return "", fmt.Errorf("password input failed: %w", err)
	}
	return string(pw), nil
}

// StaticPrompter answers every prompt with the same passphrase, for unattended use.
type StaticPrompter string

func (p StaticPrompter) Passphrase(common.Address) (string, error) {
	return string(p), nil
}
