// cmd/sessionctl/main.go
// sessionctl signs in to a credential issuer and makes authenticated requests against the
// API behind it. The session is kept in a file so it survives between invocations.
//
// Configuration comes from SESSION_* environment variables (and .env), overridden by flags.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/deploymenttheory/go-api-http-session/credential"
	"github.com/deploymenttheory/go-api-http-session/httpclient"
	"github.com/deploymenttheory/go-api-http-session/issuer"
	"github.com/deploymenttheory/go-api-http-session/refresh"
	"github.com/spf13/pflag"
)

const usage = `Usage: sessionctl [global flags] <command> [flags]

Commands:
  login     --email <email> --password <password>
  register  --name <name> --email <email> --password <password>
  forgot    --email <email>
  whoami
  get       <endpoint>
  logout

Global flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var invalid *issuer.ValidationError
		switch {
		case errors.Is(err, refresh.ErrSessionExpired):
			fmt.Fprintln(os.Stderr, "session expired, run: sessionctl login")
			os.Exit(3)
		case errors.As(err, &invalid):
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	config, err := httpclient.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	config.StoreBackend = httpclient.StoreBackendFile
	if os.Getenv("SESSION_LOG_LEVEL") == "" {
		config.LogLevel = "LogLevelWarn"
	}

	global := pflag.NewFlagSet("sessionctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.StringVar(&config.BaseURL, "base-url", orDefault(config.BaseURL, "http://localhost:3000/api"), "API base url (SESSION_BASE_URL)")
	global.StringVar(&config.StoreFilePath, "session-file", config.StoreFilePath, "file holding the session (SESSION_STORE_FILE_PATH)")
	global.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level, e.g. LogLevelDebug")
	global.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return errors.New("no command given")
	}

	client, err := httpclient.BuildClient(*config, true,
		httpclient.WithLoginRedirect(func(string) {}),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, cmdArgs := rest[0], rest[1:]
	switch command {
	case "login":
		return login(ctx, client, cmdArgs, out)
	case "register":
		return register(ctx, client, cmdArgs, out)
	case "forgot":
		return forgot(ctx, client, cmdArgs, out)
	case "whoami":
		return whoami(client, out)
	case "get":
		return get(ctx, client, cmdArgs, out)
	case "logout":
		if err := client.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "signed out")
		return nil
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func login(ctx context.Context, client *httpclient.Client, args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("login", pflag.ContinueOnError)
	email := flags.String("email", "", "account email")
	password := flags.String("password", os.Getenv("SESSION_PASSWORD"), "account password (SESSION_PASSWORD)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	identity, err := client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "signed in as %s <%s>\n", identity.DisplayName, identity.Email)
	return nil
}

func register(ctx context.Context, client *httpclient.Client, args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("register", pflag.ContinueOnError)
	name := flags.String("name", "", "display name")
	email := flags.String("email", "", "account email")
	password := flags.String("password", os.Getenv("SESSION_PASSWORD"), "account password (SESSION_PASSWORD)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	identity, err := client.Register(ctx, *name, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "registered and signed in as %s <%s>\n", identity.DisplayName, identity.Email)
	return nil
}

func forgot(ctx context.Context, client *httpclient.Client, args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("forgot", pflag.ContinueOnError)
	email := flags.String("email", "", "account email")
	if err := flags.Parse(args); err != nil {
		return err
	}

	message, err := client.ForgotPassword(ctx, *email)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, message)
	return nil
}

func whoami(client *httpclient.Client, out io.Writer) error {
	identity := client.Identity()
	if identity == nil {
		fmt.Fprintln(out, "not signed in")
		return nil
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		credential.Identity
		Authenticated bool `json:"authenticated"`
	}{*identity, client.IsAuthenticated()})
}

func get(ctx context.Context, client *httpclient.Client, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("get takes exactly one endpoint")
	}

	var body json.RawMessage
	if _, err := client.Get(ctx, args[0], &body); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(body)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
