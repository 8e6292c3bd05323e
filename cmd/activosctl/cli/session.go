package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/credentials"
	"github.com/activos-fijos/activos/internal/gateway"
	"github.com/activos-fijos/activos/internal/rbac"
	"github.com/activos-fijos/activos/internal/shared"
)

// Exit codes shared by every command.
const (
	ExitOK              = 0
	ExitError           = 1
	ExitUnauthenticated = 2
)

// Authenticator opens and closes the CLI session.
type Authenticator interface {
	Login(ctx context.Context, key, email, password string, remember bool) (credentials.User, error)
	Logout(ctx context.Context, key string) error
}

// TokenSource re-establishes the access token, refreshing a persisted one.
type TokenSource interface {
	EnsureToken(ctx context.Context) (string, error)
}

// AssetLister reads the asset register.
type AssetLister interface {
	ListActivos(ctx context.Context, params backend.ListParams) (backend.Page[backend.Activo], error)
}

// SessionCLI runs the commands that act as the signed-in user. Every command
// uses credentials.DefaultKey.
type SessionCLI struct {
	auth   Authenticator
	store  credentials.Store
	tokens TokenSource
	assets AssetLister
}

// NewSessionCLI wires the session commands.
func NewSessionCLI(auth Authenticator, store credentials.Store, tokens TokenSource, assets AssetLister) *SessionCLI {
	return &SessionCLI{auth: auth, store: store, tokens: tokens, assets: assets}
}

// Output selects where and how a command prints.
type Output struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

func (o Output) defaults() Output {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	return o
}

// LoginOptions defines the flags of the login command.
type LoginOptions struct {
	Email    string
	Password string
	Remember bool
	Output
}

// LoginCommand signs in and, with Remember, persists the refresh token.
func (c *SessionCLI) LoginCommand(ctx context.Context, opts LoginOptions) int {
	out := opts.Output.defaults()
	email := strings.TrimSpace(opts.Email)
	if email == "" || opts.Password == "" {
		_, _ = fmt.Fprintln(out.Stderr, "login: --email and a password are required")
		return ExitError
	}
	user, err := c.auth.Login(ctx, credentials.DefaultKey, email, opts.Password, opts.Remember)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			_, _ = fmt.Fprintln(out.Stderr, "login: correo o contraseña incorrectos")
			return ExitUnauthenticated
		}
		_, _ = fmt.Fprintf(out.Stderr, "login: %v\n", err)
		return ExitError
	}
	if out.JSONOutput {
		return encode(out, user)
	}
	_, _ = fmt.Fprintf(out.Stdout, "Sesión iniciada como %s <%s>\n", displayName(user), user.Email)
	if opts.Remember {
		_, _ = fmt.Fprintln(out.Stdout, "La sesión se recordará en este equipo.")
	}
	return ExitOK
}

// LogoutCommand closes the session and forgets the persisted token.
func (c *SessionCLI) LogoutCommand(ctx context.Context, out Output) int {
	out = out.defaults()
	if err := c.auth.Logout(ctx, credentials.DefaultKey); err != nil {
		_, _ = fmt.Fprintf(out.Stderr, "logout: %v\n", err)
		return ExitError
	}
	_, _ = fmt.Fprintln(out.Stdout, "Sesión cerrada.")
	return ExitOK
}

type whoamiSummary struct {
	User        credentials.User  `json:"user"`
	Permissions []rbac.Permission `json:"permissions"`
}

// WhoamiCommand prints the user and the permission table merged from its
// roles.
func (c *SessionCLI) WhoamiCommand(ctx context.Context, out Output) int {
	out = out.defaults()
	creds, code := c.session(ctx, "whoami", out)
	if code != ExitOK {
		return code
	}
	table := creds.Permissions()
	if out.JSONOutput {
		return encode(out, whoamiSummary{User: creds.User, Permissions: table.Permissions()})
	}
	_, _ = fmt.Fprintf(out.Stdout, "%s <%s>\n", displayName(creds.User), creds.User.Email)
	tw := tabwriter.NewWriter(out.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "MÓDULO\tACCIONES")
	for _, subject := range table.Subjects() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", subject, strings.Join(table.Actions(subject), ", "))
	}
	_ = tw.Flush()
	return ExitOK
}

// ActivosOptions defines the flags of the activos command.
type ActivosOptions struct {
	Page   int
	Limit  int
	Search string
	Output
}

// ActivosCommand prints one page of the asset register.
func (c *SessionCLI) ActivosCommand(ctx context.Context, opts ActivosOptions) int {
	out := opts.Output.defaults()
	if _, code := c.session(ctx, "activos", out); code != ExitOK {
		return code
	}
	page, err := c.assets.ListActivos(ctx, backend.ListParams{Page: opts.Page, Limit: opts.Limit, Search: opts.Search}.Normalize())
	if err != nil {
		return failure(out, "activos", err)
	}
	if out.JSONOutput {
		return encode(out, page)
	}
	tw := tabwriter.NewWriter(out.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CÓDIGO\tNOMBRE\tCATEGORÍA\tESTADO\tUBICACIÓN")
	for _, a := range page.Data {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.Codigo, a.Nombre, a.Categoria, a.Estado, a.Ubicacion)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(out.Stdout, "Página %d de %d (%d activos)\n", page.Meta.Page, max(page.Meta.LastPage, 1), page.Meta.Total)
	return ExitOK
}

// session makes sure a usable token exists and returns the stored
// credentials.
func (c *SessionCLI) session(ctx context.Context, command string, out Output) (credentials.Credentials, int) {
	if _, err := c.tokens.EnsureToken(ctx); err != nil {
		return credentials.Credentials{}, failure(out, command, err)
	}
	creds, err := c.store.Get(ctx, credentials.DefaultKey)
	if err != nil {
		return credentials.Credentials{}, failure(out, command, err)
	}
	return creds, ExitOK
}

func failure(out Output, command string, err error) int {
	if errors.Is(err, gateway.ErrUnauthenticated) || errors.Is(err, gateway.ErrRefreshFailed) || errors.Is(err, backend.ErrUnauthorized) {
		_, _ = fmt.Fprintf(out.Stderr, "%s: sesión no iniciada o expirada, ejecute \"activosctl login\"\n", command)
		return ExitUnauthenticated
	}
	_, _ = fmt.Fprintf(out.Stderr, "%s: %v\n", command, err)
	return ExitError
}

func encode(out Output, v any) int {
	enc := json.NewEncoder(out.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_, _ = fmt.Fprintf(out.Stderr, "encode json: %v\n", err)
		return ExitError
	}
	return ExitOK
}

func displayName(user credentials.User) string {
	if user.Name != "" {
		return user.Name
	}
	return user.Email
}
