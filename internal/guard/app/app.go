package app

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

	"golang.org/x/time/rate"

	"github.com/cs2central/steam-authenticator-linux/internal/guard/service"
	"github.com/cs2central/steam-authenticator-linux/internal/guard/store"
	"github.com/cs2central/steam-authenticator-linux/internal/guard/store/drivers/sqlite"
	"github.com/cs2central/steam-authenticator-linux/pkg/idx"
	"github.com/cs2central/steam-authenticator-linux/pkg/slogx"
	"github.com/cs2central/steam-authenticator-linux/pkg/steamweb"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application wires the vault, the Steam client and the services behind the
// CLI subcommands.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	client *steamweb.Client

	clock         *service.ClockSync
	codes         *service.CodeService
	sessions      *service.SessionManager
	confirmations *service.ConfirmationEngine
	mafiles       *service.MaFileService
	linker        *service.Linker

	// Stdin/Stdout are swappable for tests.
	Stdin  io.Reader
	Stdout io.Writer
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "steamauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}

	db, err := sqlite.NewStore(cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("opening vault: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating vault: %w", err)
	}
	app.db = db

	client := steamweb.NewClient()
	if cfg.APIURL != "" {
		client.APIURL = cfg.APIURL
	}
	if cfg.CommunityURL != "" {
		client.CommunityURL = cfg.CommunityURL
	}
	app.client = client

	app.clock = &service.ClockSync{Client: client, Staleness: cfg.ClockStaleness}
	app.codes = &service.CodeService{Store: db, Clock: app.clock}
	app.sessions = &service.SessionManager{
		Store:      db,
		Client:     client,
		Clock:      app.clock,
		DeviceName: cfg.DeviceName,
	}
	app.confirmations = &service.ConfirmationEngine{
		Store:    db,
		Client:   client,
		Sessions: app.sessions,
		Clock:    app.clock,
		Limiter:  rate.NewLimiter(rate.Limit(cfg.ConfirmRate), 1),
	}
	app.mafiles = &service.MaFileService{Store: db}
	app.linker = &service.Linker{
		Store:    db,
		Client:   client,
		Sessions: app.sessions,
		Clock:    app.clock,
	}

	return app, nil
}

// Close releases the vault.
func (app *Application) Close() error {
	return app.db.Close()
}

const usage = `usage: steamauth <command> [arguments]

commands:
  accounts                      list stored accounts
  code <account>                print the current guard code
  confirmations <account>       list pending confirmations
  accept <account> [id ...]     accept confirmations (all pending if no ids)
  deny <account> [id ...]       deny confirmations (all pending if no ids)
  login <account>               log in (password read from stdin)
  logout <account>              drop the stored session
  import [-passkey pk] <path>   import a .maFile or an SDA folder
  export [-passkey pk] <dir>    export all accounts as an SDA folder
  link <account>                attach a new authenticator
  activate <account> <code>     finalize linking with the SMS/email code
  unlink <account>              remove the authenticator via revocation code
  remove <account>              delete the account from the vault
`

// Run dispatches one CLI invocation. The context carries the logger and a
// request id so every network call in the command correlates in the logs.
func (app *Application) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(app.Stdout, usage)
		return errors.New("missing command")
	}

	ctx = slogx.WithContext(ctx, app.logger)
	ctx = slogx.WithRequestID(ctx, idx.New().String())

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "accounts":
		return app.cmdAccounts(ctx)
	case "code":
		return app.cmdCode(ctx, rest)
	case "confirmations":
		return app.cmdConfirmations(ctx, rest)
	case "accept":
		return app.cmdResolve(ctx, rest, true)
	case "deny":
		return app.cmdResolve(ctx, rest, false)
	case "login":
		return app.cmdLogin(ctx, rest)
	case "logout":
		return app.cmdLogout(ctx, rest)
	case "import":
		return app.cmdImport(ctx, rest)
	case "export":
		return app.cmdExport(ctx, rest)
	case "link":
		return app.cmdLink(ctx, rest)
	case "activate":
		return app.cmdActivate(ctx, rest)
	case "unlink":
		return app.cmdUnlink(ctx, rest)
	case "remove":
		return app.cmdRemove(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprint(app.Stdout, usage)
		return nil
	default:
		fmt.Fprint(app.Stdout, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func oneArg(args []string, what string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected exactly one %s argument", what)
	}
	return args[0], nil
}

func (app *Application) cmdAccounts(ctx context.Context) error {
	accounts, err := app.db.Accounts().List(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Fprintln(app.Stdout, "no accounts stored")
		return nil
	}
	for _, a := range accounts {
		state := "no authenticator"
		if a.HasSecrets() {
			state = "linked"
		}
		session := "logged out"
		if a.LoggedIn() {
			session = "logged in"
		}
		fmt.Fprintf(app.Stdout, "%s\t%s\t%s\t%s\n", a.AccountName, a.SteamID, state, session)
	}
	return nil
}

func (app *Application) cmdCode(ctx context.Context, args []string) error {
	name, err := oneArg(args, "account")
	if err != nil {
		return err
	}
	ctx = slogx.WithAccount(ctx, name)

	code, err := app.codes.Code(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Stdout, "%s  (valid %ds)\n", code.Code, int(code.ExpiresIn.Seconds()))
	return nil
}

func (app *Application) cmdConfirmations(ctx context.Context, args []string) error {
	name, err := oneArg(args, "account")
	if err != nil {
		return err
	}
	ctx = slogx.WithAccount(ctx, name)

	confs, err := app.confirmations.List(ctx, name)
	if err != nil {
		return err
	}
	if len(confs) == 0 {
		fmt.Fprintln(app.Stdout, "no pending confirmations")
		return nil
	}
	for _, c := range confs {
		fmt.Fprintf(app.Stdout, "%s\t%s\t%s\n", c.ID, c.Type, c.Headline)
	}
	return nil
}

func (app *Application) cmdResolve(ctx context.Context, args []string, accept bool) error {
	if len(args) < 1 {
		return errors.New("expected an account argument")
	}
	name, ids := args[0], args[1:]
	ctx = slogx.WithAccount(ctx, name)

	confs, err := app.confirmations.List(ctx, name)
	if err != nil {
		return err
	}

	if len(ids) > 0 {
		wanted := make(map[string]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}
		filtered := confs[:0]
		for _, c := range confs {
			if wanted[c.ID] {
				filtered = append(filtered, c)
				delete(wanted, c.ID)
			}
		}
		if len(wanted) > 0 {
			missing := make([]string, 0, len(wanted))
			for id := range wanted {
				missing = append(missing, id)
			}
			return fmt.Errorf("no pending confirmation with id %s", strings.Join(missing, ", "))
		}
		confs = filtered
	}
	if len(confs) == 0 {
		fmt.Fprintln(app.Stdout, "nothing to do")
		return nil
	}

	verb := "denied"
	if accept {
		verb = "accepted"
	}
	var failed int
	for _, outcome := range app.confirmations.ResolveAll(ctx, name, confs, accept) {
		if outcome.Err != nil {
			failed++
			fmt.Fprintf(app.Stdout, "%s\tFAILED\t%v\n", outcome.Confirmation.ID, outcome.Err)
			continue
		}
		fmt.Fprintf(app.Stdout, "%s\t%s\n", outcome.Confirmation.ID, verb)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d confirmations failed", failed, len(confs))
	}
	return nil
}

func (app *Application) cmdLogin(ctx context.Context, args []string) error {
	name, err := oneArg(args, "account")
	if err != nil {
		return err
	}
	ctx = slogx.WithAccount(ctx, name)

	fmt.Fprintf(app.Stdout, "password for %s: ", name)
	reader := bufio.NewReader(app.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	password = strings.TrimRight(password, "\r\n")
	if password == "" {
		return errors.New("empty password")
	}

	if err := app.sessions.Login(ctx, name, password); err != nil {
		return err
	}
	fmt.Fprintln(app.Stdout, "logged in")
	return nil
}

func (app *Application) cmdLogout(ctx context.Context, args []string) error {
	name, err := oneArg(args, "account")
	if err != nil {
		return err
	}
	if err := app.sessions.Logout(ctx, name); err != nil {
		return err
	}
	fmt.Fprintln(app.Stdout, "logged out")
	return nil
}

func (app *Application) cmdImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	passkey := fs.String("passkey", "", "passkey for encrypted SDA folders")
	fs.SetOutput(app.Stdout)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := oneArg(fs.Args(), "path")
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if info.IsDir() {
		imported, err := app.mafiles.ImportFolder(ctx, path, *passkey)
		for _, a := range imported {
			fmt.Fprintf(app.Stdout, "imported %s\n", a.AccountName)
		}
		return err
	}

	acct, err := app.mafiles.ImportFile(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Stdout, "imported %s\n", acct.AccountName)
	return nil
}

func (app *Application) cmdExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	passkey := fs.String("passkey", "", "encrypt exported files with this passkey")
	fs.SetOutput(app.Stdout)
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir, err := oneArg(fs.Args(), "directory")
	if err != nil {
		return err
	}

	if err := app.mafiles.ExportFolder(ctx, dir, *passkey); err != nil {
		return err
	}
	fmt.Fprintf(app.Stdout, "exported to %s\n", dir)
	return nil
}

func (app *Application) cmdLink(ctx context.Context, args []string) error {
	name, err := oneArg(args, "account")
	if err != nil {
		return err
	}
	ctx = slogx.WithAccount(ctx, name)

	acct, err := app.linker.Link(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Stdout, "authenticator issued\nrevocation code: %s\n", acct.RevocationCode)
	fmt.Fprintln(app.Stdout, "WRITE THE REVOCATION CODE DOWN, then run: steamauth activate "+name+" <code>")
	return nil
}

func (app *Application) cmdActivate(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("expected account and activation code arguments")
	}
	name, code := args[0], args[1]
	ctx = slogx.WithAccount(ctx, name)

	if err := app.linker.FinalizeLink(ctx, name, code); err != nil {
		return err
	}
	fmt.Fprintln(app.Stdout, "authenticator active")
	return nil
}

func (app *Application) cmdUnlink(ctx context.Context, args []string) error {
	name, err := oneArg(args, "account")
	if err != nil {
		return err
	}
	ctx = slogx.WithAccount(ctx, name)

	if err := app.linker.Unlink(ctx, name); err != nil {
		return err
	}
	fmt.Fprintln(app.Stdout, "authenticator removed")
	return nil
}

func (app *Application) cmdRemove(ctx context.Context, args []string) error {
	name, err := oneArg(args, "account")
	if err != nil {
		return err
	}
	if err := app.db.Accounts().Remove(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(app.Stdout, "removed %s\n", name)
	return nil
}
