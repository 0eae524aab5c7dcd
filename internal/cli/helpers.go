package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/existflow/learnportal/internal/app"
	"github.com/existflow/learnportal/internal/auth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var stdin = bufio.NewReader(os.Stdin)

// openApp builds the application for a single command
func openApp(cmd *cobra.Command) (*app.App, error) {
	return app.New(cmd.Context(), cfg, nil)
}

// requireSession fails when nobody is logged in
func requireSession(a *app.App) error {
	if !a.Auth.HasSession() {
		return errors.New("not logged in, run 'portal auth login' first")
	}
	return nil
}

// promptLine reads a line, using fallback when it is not empty
func promptLine(label, fallback string) string {
	if fallback != "" {
		return fallback
	}
	fmt.Print(label)
	line, _ := stdin.ReadString('\n')
	return strings.TrimSpace(line)
}

// promptPassword reads a password without echo
func promptPassword(label string) string {
	fmt.Print(label)
	passwordBytes, _ := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	return string(passwordBytes)
}

// describeAuthError turns a manager error into the line shown to the user
func describeAuthError(err error) error {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return fmt.Errorf("%s", authErr.Message)
	}
	return err
}
