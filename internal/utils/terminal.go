package utils

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/term"
)

// ttyPath names the controlling terminal device.
func ttyPath() string {
	if runtime.GOOS == "windows" {
		return "CON"
	}
	return "/dev/tty"
}

// ReadPassphrase reads a passphrase from stdin without echo.
func ReadPassphrase(prompt string) ([]byte, error) {
	if !IsTerminal() {
		return nil, fmt.Errorf("cannot read passphrase: stdin is not a terminal")
	}
	return readHidden(os.Stdin, prompt)
}

// ReadPassphraseFromTTY reads a passphrase from the controlling terminal,
// for when stdin carries a piped change-set.
func ReadPassphraseFromTTY(prompt string) ([]byte, error) {
	path := ttyPath()
	tty, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s for passphrase input: %w", path, err)
	}
	defer tty.Close()

	if !term.IsTerminal(int(tty.Fd())) {
		return nil, fmt.Errorf("%s is not a terminal", path)
	}
	return readHidden(tty, prompt)
}

func readHidden(f *os.File, prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	return secret, nil
}

// IsTerminal reports whether stdin is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsTTYAvailable reports whether a controlling terminal can be opened.
func IsTTYAvailable() bool {
	tty, err := os.Open(ttyPath())
	if err != nil {
		return false
	}
	defer tty.Close()
	return term.IsTerminal(int(tty.Fd()))
}
