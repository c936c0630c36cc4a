// Command guematrix searches the Torah for equidistant letter sequences and
// word acrostics, serves the search engine over HTTP and manages the corpus
// store.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/guematrix/core/corpus"
	"github.com/FocuswithJustin/guematrix/core/engine"
	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/internal/config"
	"github.com/FocuswithJustin/guematrix/internal/logging"
	"github.com/FocuswithJustin/guematrix/internal/remote"
	"github.com/FocuswithJustin/guematrix/internal/snapshot"
	"github.com/FocuswithJustin/guematrix/internal/store"
)

const version = "0.4.0"

// Globals are the flags shared by every command. Set flags override the
// configuration file and environment.
type Globals struct {
	ConfigFile   string `name:"config" short:"c" help:"Configuration file" type:"path"`
	Driver       string `help:"Corpus source: sqlite, postgres, remote or snapshot"`
	DSN          string `name:"dsn" help:"Store data source (SQLite path or Postgres URL)"`
	RemoteURL    string `name:"remote-url" help:"Base URL of a remote guematrix server"`
	SnapshotFile string `name:"snapshot-file" help:"Snapshot file for the snapshot driver" type:"path"`
	LogLevel     string `name:"log-level" help:"Log level (debug, info, warn, error)"`
	LogFormat    string `name:"log-format" help:"Log format (json, text)"`
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Serve    ServeCmd     `cmd:"" help:"Start the REST and WebSocket server"`
	Import   ImportCmd    `cmd:"" help:"Import OSIS files into the corpus store"`
	Search   SearchCmd    `cmd:"" help:"Search for a pattern"`
	Refs     RefsCmd      `cmd:"" help:"Resolve letter indices to references"`
	Matrix   MatrixCmd    `cmd:"" help:"Show one or more searches on a letter matrix"`
	Stats    StatsCmd     `cmd:"" help:"Print corpus statistics"`
	Snapshot SnapshotCmds `cmd:"" name:"snapshot" help:"Export and verify linearization snapshots"`
	Config   ConfigCmds   `cmd:"" help:"Manage the configuration file"`
	Version  VersionCmd   `cmd:"" help:"Print version information"`
}

// load reads the configuration and applies the global flags on top.
func (g *Globals) load() (*config.Config, error) {
	cfg, err := config.Load(g.ConfigFile)
	if err != nil {
		return nil, err
	}
	if g.Driver != "" {
		cfg.Store.Driver = g.Driver
	}
	if g.DSN != "" {
		cfg.Store.DSN = g.DSN
	}
	if g.RemoteURL != "" {
		cfg.Remote.URL = g.RemoteURL
	}
	if g.SnapshotFile != "" {
		cfg.Snapshot.Path = g.SnapshotFile
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.InitLogger(logging.ParseLevel(cfg.Log.Level), logging.ParseFormat(cfg.Log.Format))
	return cfg, nil
}

// backend is the engine over the configured corpus source. store is nil for
// the remote and snapshot drivers.
type backend struct {
	engine *engine.Engine
	store  store.Store
}

func (b *backend) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}

// requireStore fails for drivers without a local store.
func (b *backend) requireStore(op string) (store.Store, error) {
	if b.store == nil {
		return nil, gerrors.NewUnsupported(op, "needs the sqlite or postgres driver")
	}
	return b.store, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	opts := []engine.Option{
		engine.WithMaxResults(cfg.Search.MaxResults),
		engine.WithVerseCacheSize(cfg.Cache.VerseTextSize),
		engine.WithLogger(logging.GetLogger()),
	}

	switch cfg.Store.Driver {
	case config.DriverRemote:
		client, err := remote.New(cfg.Remote.URL,
			remote.WithTimeout(cfg.Remote.Timeout),
			remote.WithAPIKey(cfg.Remote.APIKey),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithResolver(client))
		return &backend{engine: engine.New(client, opts...)}, nil

	case config.DriverSnapshot:
		return &backend{engine: engine.New(snapshot.Source{Path: cfg.Snapshot.Path}, opts...)}, nil
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	opts = append(opts, engine.WithVerseTexts(st))
	return &backend{engine: engine.New(corpus.NewCache(st), opts...), store: st}, nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(out io.Writer) error {
	_, err := io.WriteString(out, "guematrix version "+version+"\n")
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("guematrix"),
		kong.Description(heredoc.Doc(`
			Search the Torah for equidistant letter sequences (ELS) and word
			acrostics, lay several results over one letter matrix, and serve
			the engine over HTTP.

			The corpus comes from a SQLite or Postgres store filled by
			"guematrix import", from a remote guematrix server, or from a
			snapshot file.
		`)),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.BindTo(io.Writer(os.Stdout), (*io.Writer)(nil)),
		kong.Bind(&cli.Globals),
	)
	err := kctx.Run()
	kctx.FatalIfErrorf(err)
}
