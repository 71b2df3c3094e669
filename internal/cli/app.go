// Package cli implements the tripsync command-line client.
//
// Run wires the sync layer to the local cache and the API for a single
// command, then tears everything down again. Long-running commands (sync,
// watch) keep the background loops alive until the context is cancelled.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/family-trips/internal/client"
	"github.com/sakif/family-trips/internal/config"
	"github.com/sakif/family-trips/internal/localstore"
	"github.com/sakif/family-trips/internal/tripsync"
)

// Options configures a Run.
type Options struct {
	ConfigPath string
	Out        io.Writer
	Err        io.Writer
}

// app is everything one command needs.
type app struct {
	cfgPath string
	cfg     *config.Client
	out     io.Writer
	logger  *slog.Logger

	cache     *localstore.SQLite
	store     *localstore.Safe
	session   *client.Session
	api       *client.Client
	conn      *tripsync.Connection
	trips     *tripsync.TripFetcher
	dashboard *tripsync.Dashboard
	queue     *tripsync.Queue
}

type command struct {
	name    string
	usage   string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"login", "login -token <refresh token>", "sign in with a token from /auth/session", cmdLogin},
		{"logout", "logout", "forget the saved session", cmdLogout},
		{"status", "status [-force]", "show connection and queue state", cmdStatus},
		{"trips", "trips [-force]", "list your trips", cmdTrips},
		{"trip", "trip [-force] <trip id>", "show one trip and its members", cmdTrip},
		{"create-trip", "create-trip -name N -dest D -start YYYY-MM-DD -end YYYY-MM-DD", "create a trip", cmdCreateTrip},
		{"join", "join <invite code>", "join a trip", cmdJoin},
		{"wishlist", "wishlist <trip id>", "list a trip's wishlist", cmdWishlist},
		{"wish", "wish [-category C] [-desc D] <trip id> <title>", "add a wishlist item", cmdWish},
		{"done", "done [-undo] <trip id> <item id>", "mark a wishlist item completed", cmdDone},
		{"memories", "memories [-date YYYY-MM-DD] <trip id>", "show the trip journal", cmdMemories},
		{"memory", "memory -date YYYY-MM-DD <trip id> <text>", "add a journal entry", cmdMemory},
		{"ask", "ask <trip id> <question>", "ask the trip assistant", cmdAsk},
		{"queue", "queue [list|process|clear|clear-abandoned]", "inspect the offline queue", cmdQueue},
		{"sync", "sync", "stay online: check, replay the queue, refresh trips", cmdSync},
		{"watch", "watch <trip id>", "follow live changes to a trip", cmdWatch},
	}
}

// Run executes one command. args excludes the program name and global flags.
func Run(ctx context.Context, opts Options, args []string) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" {
		usage(opts.Out)
		return nil
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		usage(opts.Err)
		return fmt.Errorf("unknown command %q", args[0])
	}

	a, err := open(opts)
	if err != nil {
		return err
	}
	defer a.close()

	return cmd.run(ctx, a, args[1:])
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: tripsync [-config path] <command> [args]")
	fmt.Fprintln(w)
	sorted := append([]command(nil), commands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })
	for _, c := range sorted {
		fmt.Fprintf(w, "  %-14s %s\n", c.name, c.summary)
	}
}

func open(opts Options) (*app, error) {
	cfg, err := config.LoadClient(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(opts.Err, &slog.HandlerOptions{
		Level: config.ParseLevel(cfg.LogLevel),
	}))

	a := &app{cfgPath: opts.ConfigPath, cfg: cfg, out: opts.Out, logger: logger}

	// A cache that cannot be opened still leaves a working, memory-only client.
	var backend localstore.Backend
	if cfg.CachePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0o700); err != nil {
			logger.Warn("cache directory unavailable", slog.String("error", err.Error()))
		}
	}
	if cache, err := localstore.OpenSQLite(cfg.CachePath); err != nil {
		logger.Warn("local cache unavailable, nothing will persist", slog.String("error", err.Error()))
	} else {
		a.cache = cache
		backend = cache
	}
	a.store = localstore.NewSafe(backend, logger.With(slog.String("component", "localstore")))

	var tok *oauth2.Token
	if cfg.RefreshToken != "" {
		tok = &oauth2.Token{
			AccessToken:  cfg.AccessToken,
			TokenType:    "Bearer",
			RefreshToken: cfg.RefreshToken,
			Expiry:       cfg.TokenExpiry,
		}
	}
	a.session = client.NewSession(cfg.ServerURL, cfg.UserID, tok, nil)
	a.session.Subscribe(a.saveToken)
	a.api = client.New(cfg.ServerURL, a.session, nil, logger.With(slog.String("component", "client")))

	env := tripsync.Env{
		Store:   a.store,
		Network: tripsync.NewMonitor(true),
		Clock:   tripsync.SystemClock(),
		Policy:  tripsync.DefaultPolicy(),
		Logger:  logger.With(slog.String("component", "tripsync")),
	}
	a.conn = tripsync.NewConnection(env, a.api, a.session)
	a.trips = tripsync.NewTripFetcher(env, a.api)
	a.dashboard = tripsync.NewDashboard(env, a.api, a.conn)
	a.queue = tripsync.NewQueue(env)
	tripsync.RegisterMutations(a.queue, a.api)

	// Seed the monitor from the last known state so offline commands do not
	// wait on a doomed request.
	if st := a.conn.Status(); st.Status == tripsync.StatusDisconnected {
		env.Network.Set(false)
	}
	return a, nil
}

func (a *app) close() {
	a.dashboard.Close()
	if a.cache != nil {
		a.cache.Close()
	}
}

// saveToken persists every rotated token; the old refresh token is
// already spent by the time this runs.
func (a *app) saveToken(tok oauth2.Token) {
	a.cfg.AccessToken = tok.AccessToken
	a.cfg.RefreshToken = tok.RefreshToken
	a.cfg.TokenExpiry = tok.Expiry
	a.cfg.UserID = a.session.UserID()
	if err := config.SaveClient(a.cfgPath, a.cfg); err != nil {
		a.logger.Error("saving rotated session failed, you may need to log in again",
			slog.String("error", err.Error()))
	}
}

// requireUser returns the signed-in user id.
func (a *app) requireUser() (string, error) {
	if !a.session.SignedIn() || a.session.UserID() == "" {
		return "", errors.New("not signed in: run `tripsync login -token <token>`")
	}
	return a.session.UserID(), nil
}

// online refreshes the connection state (within the cooldown) and reports
// whether requests should go to the server.
func (a *app) online(ctx context.Context) bool {
	st := a.conn.CheckConnection(ctx, false)
	return st.Status == tripsync.StatusConnected || a.conn.Network().Online()
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
