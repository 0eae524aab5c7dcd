package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/existflow/learnportal/internal/api"
	"github.com/existflow/learnportal/internal/app"
	"github.com/existflow/learnportal/internal/auth"
	"github.com/existflow/learnportal/internal/oauth"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long:  `Sign in to the learning portal with email and password or with Google.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with email and password",
	RunE:  runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account",
	RunE:  runRegister,
}

var confirmCmd = &cobra.Command{
	Use:   "confirm [code]",
	Short: "Confirm your email with the code you received",
	Long: `Confirm your email address with the verification code.

Confirming does not log you in. Run 'portal auth login' afterwards.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfirm,
}

var resendCmd = &cobra.Command{
	Use:   "resend",
	Short: "Send a new verification code",
	RunE:  runResend,
}

var googleCmd = &cobra.Command{
	Use:   "google",
	Short: "Log in with Google",
	Long: `Log in with Google.

The sign-in page opens in your browser. After you approve, Google redirects
back to the portal origin, where a local listener completes the sign-in.`,
	RunE: runGoogle,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out",
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who is logged in",
	RunE:  runStatus,
}

var (
	authEmail     string
	authFirstName string
	authLastName  string
	googleTimeout time.Duration
	googleNoOpen  bool
)

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(registerCmd)
	authCmd.AddCommand(confirmCmd)
	authCmd.AddCommand(resendCmd)
	authCmd.AddCommand(googleCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)

	for _, c := range []*cobra.Command{loginCmd, registerCmd, confirmCmd, resendCmd} {
		c.Flags().StringVarP(&authEmail, "email", "e", "", "Account email")
	}
	registerCmd.Flags().StringVar(&authFirstName, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&authLastName, "last-name", "", "Last name")
	googleCmd.Flags().DurationVar(&googleTimeout, "timeout", 5*time.Minute, "How long to wait for the Google redirect")
	googleCmd.Flags().BoolVar(&googleNoOpen, "no-browser", false, "Only print the sign-in URL")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	email := promptLine("Email: ", authEmail)
	password := promptPassword("Password: ")

	fmt.Println("🔄 Logging in...")
	err = a.Auth.Login(cmd.Context(), email, password)
	if errors.Is(err, auth.ErrVerificationRequired) {
		fmt.Printf("📬 %s is not confirmed yet.\n", email)
		fmt.Println("   Run 'portal auth confirm' with the code from your email,")
		fmt.Println("   or 'portal auth resend' for a new one.")
		return nil
	}
	if err != nil {
		return describeAuthError(err)
	}

	fmt.Printf("✅ Logged in as %s\n", a.Auth.State().User.DisplayName())
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	req := api.RegisterRequest{
		Email:     promptLine("Email: ", authEmail),
		FirstName: authFirstName,
		LastName:  authLastName,
	}
	req.Password = promptPassword("Password: ")
	confirm := promptPassword("Confirm Password: ")
	if req.Password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	fmt.Println("🔄 Creating account...")
	pending, err := a.Auth.Register(cmd.Context(), req)
	if err != nil {
		return describeAuthError(err)
	}
	if pending {
		fmt.Printf("📬 Account created. A verification code was sent to %s.\n", req.Email)
		fmt.Println("   Run 'portal auth confirm <code>' and then log in.")
		return nil
	}

	fmt.Println("✅ Account created and logged in!")
	return nil
}

func runConfirm(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	email := promptLine("Email: ", authEmail)
	code := ""
	if len(args) > 0 {
		code = args[0]
	}
	code = promptLine("Verification code: ", code)

	fmt.Println("🔄 Confirming...")
	if err := a.Auth.ConfirmSignUp(cmd.Context(), email, code); err != nil {
		return describeAuthError(err)
	}

	fmt.Println("✅ Email confirmed. Log in with 'portal auth login'.")
	return nil
}

func runResend(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	email := promptLine("Email: ", authEmail)
	if err := a.Auth.ResendConfirmationCode(cmd.Context(), email); err != nil {
		return describeAuthError(err)
	}

	fmt.Printf("📬 A new code was sent to %s\n", email)
	return nil
}

func runGoogle(cmd *cobra.Command, args []string) error {
	nav := oauth.BrowserNavigator{Out: cmd.OutOrStdout(), OpenBrowser: !googleNoOpen}
	a, err := app.New(cmd.Context(), cfg, nav)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if a.Auth.HasSession() {
		fmt.Printf("Already logged in as %s\n", a.Auth.State().User.Email)
		return nil
	}

	srv, err := a.CallbackServer()
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	if err := a.Auth.LoginWithGoogle(cmd.Context()); err != nil {
		return describeAuthError(err)
	}

	fmt.Println("⏳ Waiting for Google to redirect back...")
	ctx, cancel := context.WithTimeout(cmd.Context(), googleTimeout)
	defer cancel()

	out, err := srv.Wait(ctx)
	if err != nil {
		return err
	}

	switch out.State {
	case oauth.Succeeded:
		fmt.Printf("✅ Logged in as %s\n", a.Auth.State().User.DisplayName())
		return nil
	case oauth.Failed:
		return describeAuthError(out.Err)
	default:
		fmt.Println("Already logged in.")
		return nil
	}
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if !a.Auth.HasSession() {
		fmt.Println("Not logged in.")
		return nil
	}

	a.Auth.Logout(cmd.Context())
	fmt.Println("✅ Logged out successfully.")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	s := a.Auth.State()
	if s.User == nil {
		fmt.Println("Not logged in.")
		return nil
	}

	fmt.Printf("👤 %s\n", s.User.DisplayName())
	fmt.Printf("   Email:    %s\n", s.User.Email)
	fmt.Printf("   Server:   %s\n", a.API.BaseURL())
	fmt.Printf("   Progress: %d%%\n", a.Progress.CompletionPercentage())
	return nil
}
