package oauth

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"github.com/existflow/learnportal/internal/logger"
)

// BrowserNavigator sends the user to the provider's sign-in page. The URL is
// always printed so a headless terminal can still complete the flow.
type BrowserNavigator struct {
	Out         io.Writer
	OpenBrowser bool
}

// Navigate prints url and, when enabled, opens it in the system browser
func (n BrowserNavigator) Navigate(_ context.Context, url string) error {
	if n.Out != nil {
		fmt.Fprintf(n.Out, "🌐 Continue sign-in in your browser:\n   %s\n", url)
	}
	if !n.OpenBrowser {
		return nil
	}

	cmd := openCommand(url)
	if err := cmd.Start(); err != nil {
		logger.Warn("Failed to open browser", logger.Err(err))
		return nil
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func openCommand(url string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return exec.Command("xdg-open", url)
	}
}
