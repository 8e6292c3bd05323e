// Command activosctl is the operator CLI of the activos dashboard. It signs
// in as a user, remembers the session on disk and reads the asset register.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"

	"github.com/activos-fijos/activos/cmd/activosctl/cli"
	"github.com/activos-fijos/activos/internal/auth"
	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/credentials"
	"github.com/activos-fijos/activos/internal/gateway"
	"github.com/activos-fijos/activos/jobs"
)

type ctlConfig struct {
	BackendURL string `envconfig:"BACKEND_URL" default:"http://127.0.0.1:3000/api"`
	StateFile  string `envconfig:"STATE_FILE"`
	Passphrase string `envconfig:"STATE_PASSPHRASE"`
	Password   string `envconfig:"PASSWORD"`
	RedisAddr  string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
}

const usage = `uso: activosctl [opciones] <comando> [argumentos]

Comandos:
  login     inicia sesión (--email, --password o ACTIVOS_PASSWORD, --remember)
  logout    cierra la sesión y olvida el token guardado
  whoami    muestra el usuario y sus permisos
  activos   lista activos (--page, --limit, --search)
  warmup    encola una actualización del panel
  jobs      muestra el estado de la cola de trabajos

Opciones:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var cfg ctlConfig
	if err := envconfig.Process("activos", &cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return cli.ExitError
	}

	global := pflag.NewFlagSet("activosctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(stderr)
	global.StringVar(&cfg.BackendURL, "backend", cfg.BackendURL, "URL base de la API")
	global.StringVar(&cfg.StateFile, "state", cfg.StateFile, "archivo de sesión recordada")
	global.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "dirección de Redis para trabajos")
	asJSON := global.Bool("json", false, "salida en JSON")
	verbose := global.BoolP("verbose", "v", false, "registra el tráfico con la API")
	global.Usage = func() {
		_, _ = fmt.Fprint(stderr, usage)
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return cli.ExitError
	}
	if global.NArg() == 0 {
		global.Usage()
		return cli.ExitError
	}
	command, rest := global.Arg(0), global.Args()[1:]
	out := cli.Output{JSONOutput: *asJSON, Stdout: stdout, Stderr: stderr}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	switch command {
	case "warmup", "jobs":
		return runJobs(ctx, command, cfg, out)
	}

	if cfg.StateFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "state: %v\n", err)
			return cli.ExitError
		}
		cfg.StateFile = filepath.Join(dir, "activos", "session.json")
	}
	store := credentials.NewFileStore(cfg.StateFile, cfg.Passphrase)
	if err := store.Load(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "state: %v\n", err)
		return cli.ExitError
	}

	publicClient := backend.NewClient(backend.Config{BaseURL: cfg.BackendURL, Logger: logger})
	var authService *auth.Service
	transport := gateway.New(gateway.Config{
		Store: store,
		Refresher: gateway.RefresherFunc(func(ctx context.Context, refreshToken string) (credentials.Credentials, error) {
			return authService.Refresh(ctx, refreshToken)
		}),
		Logger: logger,
	})
	api := backend.NewClient(backend.Config{BaseURL: cfg.BackendURL, Transport: transport, Logger: logger})
	authService = auth.NewService(publicClient, api, store, logger)
	session := cli.NewSessionCLI(authService, store, transport, api)

	switch command {
	case "login":
		opts := cli.LoginOptions{Password: cfg.Password, Output: out}
		fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
		fs.SetOutput(stderr)
		fs.StringVar(&opts.Email, "email", "", "correo del usuario")
		fs.StringVar(&opts.Password, "password", opts.Password, "contraseña (o ACTIVOS_PASSWORD)")
		fs.BoolVar(&opts.Remember, "remember", false, "recordar la sesión en este equipo")
		if err := fs.Parse(rest); err != nil {
			return cli.ExitError
		}
		return session.LoginCommand(ctx, opts)
	case "logout":
		return session.LogoutCommand(ctx, out)
	case "whoami":
		return session.WhoamiCommand(ctx, out)
	case "activos":
		opts := cli.ActivosOptions{Output: out}
		fs := pflag.NewFlagSet("activos", pflag.ContinueOnError)
		fs.SetOutput(stderr)
		fs.IntVar(&opts.Page, "page", 1, "página")
		fs.IntVar(&opts.Limit, "limit", backend.DefaultLimit, "activos por página")
		fs.StringVarP(&opts.Search, "search", "s", "", "texto a buscar")
		if err := fs.Parse(rest); err != nil {
			return cli.ExitError
		}
		return session.ActivosCommand(ctx, opts)
	default:
		_, _ = fmt.Fprintf(stderr, "comando desconocido %q\n", command)
		global.Usage()
		return cli.ExitError
	}
}

func runJobs(ctx context.Context, command string, cfg ctlConfig, out cli.Output) int {
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client, err := jobs.NewClient(redisOpts)
	if err != nil {
		_, _ = fmt.Fprintf(out.Stderr, "jobs: %v\n", err)
		return cli.ExitError
	}
	defer func() { _ = client.Close() }()
	inspector := asynq.NewInspector(redisOpts)
	defer func() { _ = inspector.Close() }()

	jobsCLI := cli.NewJobsCLI(client, inspector)
	if command == "warmup" {
		return jobsCLI.WarmupCommand(ctx, out)
	}
	return jobsCLI.StatsCommand(out)
}
