package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/taskwire/taskwire/internal/api"
	"github.com/taskwire/taskwire/internal/state"
)

func runLoginCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("taskwire login", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if len(fs.Args()) != 0 {
		fmt.Fprintln(os.Stderr, "usage: taskwire login [-email <addr>] [-password <pw>]")
		return 2
	}

	a, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer a.Close()

	if *email == "" {
		*email = prompt("Email: ")
	}
	if *password == "" {
		*password = prompt("Password: ")
	}
	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "email and password are required")
		return 2
	}

	sess, err := a.client.Login(ctx, *email, *password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", loginError(err))
		return 1
	}
	if err := a.sessions.Set(sess); err != nil {
		fmt.Fprintf(os.Stderr, "save session: %v\n", err)
		return 1
	}

	fmt.Printf("Logged in as %s (%s)\n", sess.Email, sess.Role)
	return 0
}

// loginError maps transport and auth failures to a message worth showing a
// user typing a password.
func loginError(err error) string {
	if api.IsUnauthorized(err) {
		return "invalid email or password"
	}
	if err == api.ErrServerUnavailable {
		return "server unavailable; check server_url in config.yaml"
	}
	return err.Error()
}

func runSignupCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("taskwire signup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	org := fs.String("org", "", "organization name")
	name := fs.String("name", "", "your display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	a, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer a.Close()

	if *org == "" {
		*org = prompt("Organization name: ")
	}
	if *name == "" {
		*name = prompt("Your name: ")
	}
	if *email == "" {
		*email = prompt("Email: ")
	}
	if *password == "" {
		*password = prompt("Password: ")
	}
	if *org == "" || *name == "" || *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "organization, name, email, and password are required")
		return 2
	}

	sess, err := a.client.Signup(ctx, api.SignupRequest{
		OrganizationName: *org,
		Name:             *name,
		Email:            *email,
		Password:         *password,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "signup failed: %v\n", err)
		return 1
	}
	if err := a.sessions.Set(sess); err != nil {
		fmt.Fprintf(os.Stderr, "save session: %v\n", err)
		return 1
	}

	fmt.Printf("Organization %q created. Logged in as %s (%s)\n", *org, sess.Email, sess.Role)
	return 0
}

func runLogoutCommand(ctx context.Context, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: taskwire logout")
		return 2
	}

	a, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer a.Close()

	if !a.sessions.Valid() {
		fmt.Println("Not logged in.")
		return 0
	}

	// Best effort: the local session is gone either way.
	if err := a.client.Logout(ctx); err != nil {
		a.logger.Warn("server logout failed", "error", err)
	}
	if err := a.sessions.Clear(); err != nil {
		fmt.Fprintf(os.Stderr, "clear session: %v\n", err)
		return 1
	}

	fmt.Println("Logged out.")
	return 0
}

func runWhoamiCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("taskwire whoami", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	verify := fs.Bool("verify", false, "validate the session against the server")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	a, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer a.Close()

	sess, err := a.requireSession()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if *verify {
		fresh, err := a.client.Probe(ctx)
		if err != nil {
			if api.IsUnauthorized(err) {
				fmt.Fprintln(os.Stderr, "session expired; run taskwire login")
				_ = a.sessions.Clear()
				return 1
			}
			fmt.Fprintf(os.Stderr, "verify: %v\n", err)
			return 1
		}
		fresh.Token = sess.Token
		if err := a.sessions.Set(fresh); err != nil {
			a.logger.Warn("refresh session", "error", err)
		}
		sess = fresh
	}

	fmt.Print(formatSession(sess))
	return 0
}

func formatSession(sess state.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", sess.Email, sess.Role)
	fmt.Fprintf(&b, "  user id:      %s\n", sess.UserID)
	fmt.Fprintf(&b, "  organization: %s\n", sess.OrganizationID)
	if sess.IsImpersonating {
		b.WriteString("  impersonating: yes\n")
	}
	if sess.HasAdminPrivileges {
		b.WriteString("  admin privileges: yes\n")
	}
	return b.String()
}

func runOrgsCommand(ctx context.Context, args []string) int {
	action := "list"
	if len(args) > 0 {
		action = strings.ToLower(strings.TrimSpace(args[0]))
		args = args[1:]
	}

	a, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer a.Close()

	if _, err := a.requireSession(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	switch action {
	case "list":
		orgs, err := a.client.ListOrganizations(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list organizations: %v\n", err)
			return 1
		}
		for _, org := range orgs {
			fmt.Printf("%s  %s\n", org.ID, org.Name)
		}
		return 0

	case "impersonate":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: taskwire orgs impersonate <org-id>")
			return 2
		}
		sess, err := a.client.Impersonate(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "impersonate: %v\n", err)
			return 1
		}
		if err := a.sessions.Set(sess); err != nil {
			fmt.Fprintf(os.Stderr, "save session: %v\n", err)
			return 1
		}
		fmt.Printf("Now viewing organization %s as %s\n", sess.OrganizationID, sess.Email)
		return 0

	case "stop":
		sess, err := a.client.StopImpersonation(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "stop impersonation: %v\n", err)
			return 1
		}
		if err := a.sessions.Set(sess); err != nil {
			fmt.Fprintf(os.Stderr, "save session: %v\n", err)
			return 1
		}
		fmt.Printf("Back to organization %s\n", sess.OrganizationID)
		return 0

	default:
		fmt.Fprintf(os.Stderr, "unknown orgs action %q (want list, impersonate, or stop)\n", action)
		return 2
	}
}

func prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line)
}
