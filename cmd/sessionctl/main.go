package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/leadforge/sessionkit/config"
	"github.com/leadforge/sessionkit/internal/bootstrap"
	"github.com/leadforge/sessionkit/internal/domain/session"
	"github.com/leadforge/sessionkit/internal/ports"
	"github.com/leadforge/sessionkit/internal/service"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const commandTimeout = 30 * time.Second

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"login": {
			name:        "login",
			description: "Sign in with email and password and store the session",
			run:         runLogin,
		},
		"signup": {
			name:        "signup",
			description: "Create a new account and store the session if auto-confirmed",
			run:         runSignup,
		},
		"status": {
			name:        "status",
			description: "Show whether a stored session is valid and who it belongs to",
			run:         runStatus,
		},
		"token": {
			name:        "token",
			description: "Print a valid access token, refreshing it first if needed",
			run:         runToken,
		},
		"logout": {
			name:        "logout",
			description: "Revoke the session remotely and clear local storage",
			run:         runLogout,
		},
		"reset-request": {
			name:        "reset-request",
			description: "Request a password reset email",
			run:         runResetRequest,
		},
		"oauth-url": {
			name:        "oauth-url",
			description: "Print the provider authorization URL for an OAuth sign-in",
			run:         runOAuthURL,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: sessionctl <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	for _, c := range commands() {
		if err := writef(os.Stdout, "  %-16s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

type loginOptions struct {
	Email    string
	Password string
	Remember bool
}

type signupOptions struct {
	Email    string
	Password string
	Name     string
	Remember bool
}

type resetOptions struct {
	Email      string
	RedirectTo string
}

type oauthOptions struct {
	Provider   string
	RedirectTo string
	Remember   bool
}

func runLogin(cmdCtx *commandContext, args []string) error {
	opts, err := parseLoginFlags(args)
	if err != nil {
		return err
	}
	if opts.Password == "" {
		opts.Password, err = promptSecret("Password: ")
		if err != nil {
			return err
		}
	}

	return withManager(cmdCtx, func(ctx context.Context, mgr *service.Manager) error {
		result := mgr.SignIn(ctx, opts.Email, opts.Password, rememberMode(opts.Remember))
		if !result.OK {
			return fmt.Errorf("sign in: %s", result.Message)
		}
		user, _ := mgr.CurrentUser()
		cmdCtx.Logger.InfoContext(ctx, "signed in", "email", user.Email, "mode", string(rememberMode(opts.Remember)))
		return nil
	})
}

func runSignup(cmdCtx *commandContext, args []string) error {
	opts, err := parseSignupFlags(args)
	if err != nil {
		return err
	}
	if opts.Password == "" {
		opts.Password, err = promptSecret("Password: ")
		if err != nil {
			return err
		}
	}

	return withManager(cmdCtx, func(ctx context.Context, mgr *service.Manager) error {
		result := mgr.SignUp(ctx, ports.SignUpInput{
			Email:       opts.Email,
			Password:    opts.Password,
			DisplayName: opts.Name,
		}, rememberMode(opts.Remember))
		if !result.OK {
			return fmt.Errorf("sign up: %s", result.Message)
		}
		if result.ConfirmationRequired {
			return writeln(os.Stdout, "Account created; check your email to confirm before signing in.")
		}
		user, _ := mgr.CurrentUser()
		cmdCtx.Logger.InfoContext(ctx, "account created", "email", user.Email)
		return nil
	})
}

func runStatus(cmdCtx *commandContext, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("status takes no arguments")
	}

	return withManager(cmdCtx, func(ctx context.Context, mgr *service.Manager) error {
		if _, ok := mgr.ValidAccessToken(ctx); !ok {
			return writeln(os.Stdout, "No valid session.")
		}
		user, _ := mgr.CurrentUser()
		return writef(os.Stdout, "Signed in as %s (%s)\n", user.Email, user.ID)
	})
}

func runToken(cmdCtx *commandContext, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("token takes no arguments")
	}

	return withManager(cmdCtx, func(ctx context.Context, mgr *service.Manager) error {
		token, ok := mgr.ValidAccessToken(ctx)
		if !ok {
			return errors.New("no valid session; run `sessionctl login` first")
		}
		return writeln(os.Stdout, token)
	})
}

func runLogout(cmdCtx *commandContext, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("logout takes no arguments")
	}

	return withManager(cmdCtx, func(ctx context.Context, mgr *service.Manager) error {
		result := mgr.SignOut(ctx)
		if !result.OK {
			return fmt.Errorf("sign out: %s", result.Message)
		}
		cmdCtx.Logger.InfoContext(ctx, "signed out")
		return nil
	})
}

func runResetRequest(cmdCtx *commandContext, args []string) error {
	opts, err := parseResetFlags(args)
	if err != nil {
		return err
	}
	if opts.RedirectTo == "" {
		opts.RedirectTo = cmdCtx.Config.AppURL
	}

	return withManager(cmdCtx, func(ctx context.Context, mgr *service.Manager) error {
		result := mgr.RequestPasswordReset(ctx, opts.Email, opts.RedirectTo)
		if !result.OK {
			return fmt.Errorf("request password reset: %s", result.Message)
		}
		return writeln(os.Stdout, "Reset email requested; check your inbox.")
	})
}

func runOAuthURL(cmdCtx *commandContext, args []string) error {
	opts, err := parseOAuthFlags(args)
	if err != nil {
		return err
	}
	if opts.RedirectTo == "" {
		opts.RedirectTo = cmdCtx.Config.AppURL
	}

	return withManager(cmdCtx, func(ctx context.Context, mgr *service.Manager) error {
		result := mgr.SignInWithOAuth(ctx, opts.Provider, opts.RedirectTo, rememberMode(opts.Remember))
		if !result.OK {
			return fmt.Errorf("oauth url: %s", result.Message)
		}
		return writeln(os.Stdout, result.RedirectURL)
	})
}

// withManager wires the full app for a single command and tears it down
// afterwards.
func withManager(cmdCtx *commandContext, fn func(ctx context.Context, mgr *service.Manager) error) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, commandTimeout)
	defer cancel()

	app, err := bootstrap.NewApp(ctx, cmdCtx.Config, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("storage close failed", "error", closeErr)
		}
	}()

	return fn(ctx, app.Manager)
}

func rememberMode(remember bool) session.Mode {
	if remember {
		return session.ModeDurable
	}
	return session.ModeEphemeral
}

func parseLoginFlags(args []string) (loginOptions, error) {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts loginOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Password, "password", "", "Account password (prompted when omitted)")
	fs.BoolVar(&opts.Remember, "remember", true, "Keep the session across restarts")

	if err := fs.Parse(args); err != nil {
		return loginOptions{}, err
	}
	if strings.TrimSpace(opts.Email) == "" {
		return loginOptions{}, errors.New("--email is required")
	}
	return opts, nil
}

func parseSignupFlags(args []string) (signupOptions, error) {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts signupOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Password, "password", "", "Account password (prompted when omitted)")
	fs.StringVar(&opts.Name, "name", "", "Optional display name")
	fs.BoolVar(&opts.Remember, "remember", true, "Keep the session across restarts")

	if err := fs.Parse(args); err != nil {
		return signupOptions{}, err
	}
	if strings.TrimSpace(opts.Email) == "" {
		return signupOptions{}, errors.New("--email is required")
	}
	return opts, nil
}

func parseResetFlags(args []string) (resetOptions, error) {
	fs := flag.NewFlagSet("reset-request", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts resetOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.RedirectTo, "redirect-to", "", "URL the reset link should land on (defaults to APP_URL)")

	if err := fs.Parse(args); err != nil {
		return resetOptions{}, err
	}
	if strings.TrimSpace(opts.Email) == "" {
		return resetOptions{}, errors.New("--email is required")
	}
	return opts, nil
}

func parseOAuthFlags(args []string) (oauthOptions, error) {
	fs := flag.NewFlagSet("oauth-url", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts oauthOptions
	fs.StringVar(&opts.Provider, "provider", "", "OAuth provider name, e.g. google (required)")
	fs.StringVar(&opts.RedirectTo, "redirect-to", "", "URL the provider should redirect back to (defaults to APP_URL)")
	fs.BoolVar(&opts.Remember, "remember", true, "Keep the session across restarts")

	if err := fs.Parse(args); err != nil {
		return oauthOptions{}, err
	}
	if strings.TrimSpace(opts.Provider) == "" {
		return oauthOptions{}, errors.New("--provider is required")
	}
	return opts, nil
}

func promptSecret(prompt string) (string, error) {
	if err := write(os.Stderr, prompt); err != nil {
		return "", err
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", errors.New("empty password")
	}
	return value, nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func write(w io.Writer, args ...any) error {
	_, err := fmt.Fprint(w, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	if len(args) == 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	_, err := fmt.Fprintln(w, args...)
	return err
}
