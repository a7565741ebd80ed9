package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igfetch/pkg/auth"
)

var (
	authUsername  string
	authShowGuide bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Instagram session used for stories",
	Long: `Manage the Instagram session cookie used to extract stories.

The session is looked up in this order:
  - instagram.session_id in the config file
  - IGFETCH_SESSION_ID, then INSTAGRAM_SESSION_ID
  - the system keychain
  - an encrypted session file per account (AES-GCM, PBKDF2-derived key)

Never share your session cookie or config files.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a session cookie securely",
	Long: `Store the value of Instagram's sessionid cookie in the system keychain,
or in an encrypted file when no keychain is available.

The value is read without echo from the terminal, or from stdin when piped.`,
	Example: `  igfetch auth login
  igfetch auth login --guide
  pbpaste | igfetch auth login --username myaccount`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which session stories will use",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)

	authCmd.PersistentFlags().StringVarP(&authUsername, "username", "u", "", "label for the stored session (default: "+auth.DefaultUsername+")")
	authLoginCmd.Flags().BoolVar(&authShowGuide, "guide", false, "explain how to copy the sessionid cookie from a browser")

	for _, c := range []*cobra.Command{authCmd, authLoginCmd, authLogoutCmd, authStatusCmd} {
		c.Annotations = map[string]string{skipConfigAnnotation: "true"}
	}
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if authShowGuide {
		auth.WriteSessionGuide(cmd.OutOrStdout())
	}

	sessionID, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "sessionid cookie: ")
	if err != nil {
		return err
	}
	sessionID = strings.Trim(strings.TrimSpace(sessionID), `"';`)
	sessionID = strings.TrimPrefix(sessionID, "sessionid=")
	if sessionID == "" {
		return errors.New("no session ID entered")
	}

	store, err := manager.Store(&auth.Account{Username: authUsername, SessionID: sessionID})
	if err != nil {
		return err
	}

	console.Success("Session stored")
	console.Info("Store", store)
	console.Info("Session", auth.MaskSecret(sessionID))
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if err := manager.Delete(authUsername); err != nil {
		return err
	}
	console.Success("Session removed")
	if os.Getenv("IGFETCH_SESSION_ID") != "" || os.Getenv("INSTAGRAM_SESSION_ID") != "" {
		console.Warning("A session is still set in the environment")
	}
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	var manager *auth.Manager
	if m, err := auth.NewManager(); err == nil {
		manager = m
	} else {
		console.Warning("Credential stores unavailable", err)
	}

	configured := ""
	if cfg != nil {
		configured = cfg.Instagram.SessionID
	}
	cred := auth.ResolveSession(configured, manager)
	if !cred.Present() {
		console.Warning("No session configured; stories will fail with 'requires login'")
		console.Info("Next step", "igfetch auth login --guide")
		return nil
	}

	console.Success("Session available")
	console.Info("Source", cred.Source)
	console.Info("Session", auth.MaskSecret(cred.SessionID))
	return nil
}

// readSecret reads one line without echo from a terminal, or as-is from a
// pipe
func readSecret(in io.Reader, prompt io.Writer, label string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, label)
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return string(secret), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return line, nil
}
