package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"github.com/LogiStackDev/access-onboard-flow/internal/identity"
	"github.com/spf13/cobra"
)

// IdentityProvider is the subset of the identity client the auth commands use.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)
	ResetPasswordForEmail(ctx context.Context, email string) error
}

var newIdentityProvider = func(identityURL, anonKey string) IdentityProvider {
	return identity.NewClient(identityURL, anonKey)
}

var promptInput io.Reader = os.Stdin

// AuthCmd creates the auth parent command
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage your tendersync session",
		Long:  "Sign in, sign out, register, and check the session used by the tendersync CLI",
	}

	cmd.AddCommand(AuthLoginCmd())
	cmd.AddCommand(AuthRegisterCmd())
	cmd.AddCommand(AuthResetPasswordCmd())
	cmd.AddCommand(AuthLogoutCmd())
	cmd.AddCommand(AuthStatusCmd())

	return cmd
}

type identityFlags struct {
	email       string
	password    string
	apiURL      string
	identityURL string
	anonKey     string
}

func (f *identityFlags) register(cmd *cobra.Command, withPassword bool) {
	cmd.Flags().StringVar(&f.email, "email", "", "Account e-mail")
	if withPassword {
		cmd.Flags().StringVar(&f.password, "password", "", "Account password (prompted when omitted)")
	}
	cmd.Flags().StringVar(&f.apiURL, "url", "", "tendersync API URL")
	cmd.Flags().StringVar(&f.identityURL, "identity-url", "", "Identity provider URL")
	cmd.Flags().StringVar(&f.anonKey, "anon-key", "", "Identity provider public key")
}

// resolve fills endpoints from flag -> env -> global config and returns the
// config to update.
func (f *identityFlags) resolve() (*GlobalConfig, error) {
	config, err := LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	if config == nil {
		config = &GlobalConfig{}
	}

	config.APIURL = firstNonEmpty(f.apiURL, os.Getenv(envAPIURL), config.APIURL, defaultAPIURL)
	config.IdentityURL = firstNonEmpty(f.identityURL, os.Getenv(envIdentityURL), config.IdentityURL)
	config.AnonKey = firstNonEmpty(f.anonKey, os.Getenv(envAnonKey), config.AnonKey)

	if config.IdentityURL == "" || config.AnonKey == "" {
		return nil, fmt.Errorf("identity provider not configured (use --identity-url and --anon-key or set %s and %s)", envIdentityURL, envAnonKey)
	}
	return config, nil
}

// AuthLoginCmd creates the auth login command
func AuthLoginCmd() *cobra.Command {
	var flags identityFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with e-mail and password",
		Long:  "Sign in and store the session in the global config (~/.config/tendersync/config.json)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(cmd.Context(), &flags)
		},
	}

	flags.register(cmd, true)

	return cmd
}

// AuthRegisterCmd creates the auth register command
func AuthRegisterCmd() *cobra.Command {
	var flags identityFlags

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long:  "Create an account and start the trial. The session is stored when the provider signs the account in directly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthRegister(cmd.Context(), &flags)
		},
	}

	flags.register(cmd, true)

	return cmd
}

// AuthResetPasswordCmd creates the auth reset-password command
func AuthResetPasswordCmd() *cobra.Command {
	var flags identityFlags

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Send a password reset e-mail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthResetPassword(cmd.Context(), &flags)
		},
	}

	flags.register(cmd, false)

	return cmd
}

// AuthLogoutCmd creates the auth logout command
func AuthLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogout(cmd)
		},
	}

	return cmd
}

// AuthStatusCmd creates the auth status command
func AuthStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long:  "Display where the access token comes from and when it expires",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return runAuthStatus(output)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text, json)")

	return cmd
}

func runAuthLogin(ctx context.Context, flags *identityFlags) error {
	config, err := flags.resolve()
	if err != nil {
		return err
	}
	if err := promptCredentials(flags, true); err != nil {
		return err
	}

	provider := newIdentityProvider(config.IdentityURL, config.AnonKey)
	session, err := provider.SignInWithPassword(ctx, flags.email, flags.password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	storeSession(config, session)
	if err := SaveGlobalConfig(config); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Printf("Signed in as %s\n", session.User.Email)
	return nil
}

func runAuthRegister(ctx context.Context, flags *identityFlags) error {
	config, err := flags.resolve()
	if err != nil {
		return err
	}
	if err := promptCredentials(flags, true); err != nil {
		return err
	}

	provider := newIdentityProvider(config.IdentityURL, config.AnonKey)
	session, err := provider.SignUp(ctx, flags.email, flags.password)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	if session.AccessToken == "" {
		if err := SaveGlobalConfig(config); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Account created for %s. Confirm your e-mail, then run 'tendersync auth login'.\n", flags.email)
		return nil
	}

	storeSession(config, session)
	if err := SaveGlobalConfig(config); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Printf("Account created, signed in as %s\n", session.User.Email)
	return nil
}

func runAuthResetPassword(ctx context.Context, flags *identityFlags) error {
	config, err := flags.resolve()
	if err != nil {
		return err
	}
	if err := promptCredentials(flags, false); err != nil {
		return err
	}

	provider := newIdentityProvider(config.IdentityURL, config.AnonKey)
	if err := provider.ResetPasswordForEmail(ctx, flags.email); err != nil {
		return fmt.Errorf("password reset failed: %w", err)
	}

	fmt.Printf("Password reset e-mail sent to %s\n", flags.email)
	return nil
}

func runAuthLogout(cmd *cobra.Command) error {
	client, err := NewAPIClientWithCmd(cmd)
	if err == nil {
		if _, err := client.Post("/auth/logout", nil); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: server logout failed: %v\n", err)
		}
	}

	if err := ClearSession(); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}

	fmt.Println("Successfully logged out")
	return nil
}

func runAuthStatus(output string) error {
	source, token := GetCredentialSource("")

	var config *GlobalConfig
	if source == SourceGlobalConfig {
		config, _ = LoadGlobalConfig()
	}

	if output == "json" {
		return outputStatusJSON(source, token, config)
	}

	return outputStatusText(source, token, config)
}

func outputStatusJSON(source CredentialSource, token string, config *GlobalConfig) error {
	status := map[string]interface{}{
		"authenticated": source != SourceNone,
		"source":        string(source),
	}

	if source != SourceNone {
		status["access_token"] = maskToken(token)
	}
	if config != nil {
		status["email"] = config.Email
		status["api_url"] = config.APIURL
		if !config.ExpiresAt.IsZero() {
			status["expires_at"] = config.ExpiresAt.UTC().Format(time.RFC3339)
			status["expired"] = config.Expired(time.Now())
		}
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	fmt.Println(string(data))
	return nil
}

func outputStatusText(source CredentialSource, token string, config *GlobalConfig) error {
	if source == SourceNone {
		fmt.Println("Not authenticated")
		fmt.Println("Run 'tendersync auth login' to authenticate")
		return nil
	}

	fmt.Printf("Authenticated: yes\n")
	fmt.Printf("Source: %s\n", source)
	fmt.Printf("Access token: %s\n", maskToken(token))
	if config != nil {
		fmt.Printf("Email: %s\n", config.Email)
		fmt.Printf("API URL: %s\n", config.APIURL)
		if !config.ExpiresAt.IsZero() {
			fmt.Printf("Expires: %s\n", config.ExpiresAt.Local().Format(time.RFC1123))
			if config.Expired(time.Now()) {
				fmt.Println("Session expired, run 'tendersync auth login' again")
			}
		}
	}

	return nil
}

func storeSession(config *GlobalConfig, session *domain.Session) {
	config.Email = session.User.Email
	config.AccessToken = session.AccessToken
	config.RefreshToken = session.RefreshToken
	config.ExpiresAt = session.ExpiresAt
}

func promptCredentials(flags *identityFlags, withPassword bool) error {
	reader := bufio.NewReader(promptInput)
	if flags.email == "" {
		value, err := prompt(reader, "Email: ")
		if err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
		flags.email = value
	}
	if withPassword && flags.password == "" {
		value, err := prompt(reader, "Password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		flags.password = value
	}
	return nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	input, err := reader.ReadString('\n')
	if err != nil && !(err == io.EOF && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func maskToken(token string) string {
	if len(token) < 12 {
		return "***"
	}
	return token[:6] + "..." + token[len(token)-4:]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
