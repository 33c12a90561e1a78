package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/ssefeed/internal/archive"
	"github.com/rickgao/ssefeed/internal/auth"
	"github.com/rickgao/ssefeed/internal/config"
	"github.com/rickgao/ssefeed/internal/connection"
	"github.com/rickgao/ssefeed/internal/database"
	"github.com/rickgao/ssefeed/internal/lifecycle"
	"github.com/rickgao/ssefeed/internal/version"
)

type watchOptions struct {
	configPath    string
	url           string
	verbose       bool
	maxMessages   int
	archiveSQLite string
}

// --- ssewatch watch ---

func watchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect to a stream and print its states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// Handle shutdown signals
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					cancel()
				case <-ctx.Done():
				}
			}()

			return runWatch(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML or TOML config file")
	cmd.Flags().StringVar(&opts.url, "url", "", "stream url (overrides stream.url)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	cmd.Flags().IntVarP(&opts.maxMessages, "max-messages", "n", 0, "exit after this many messages (0 = no limit)")
	cmd.Flags().StringVar(&opts.archiveSQLite, "archive-sqlite", "", "archive messages to this SQLite file")
	return cmd
}

func loadConfig(opts watchOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.LoadAndValidate(opts.configPath); err != nil {
			return nil, err
		}
	}

	if opts.url != "" {
		if err := config.ValidateURL(opts.url); err != nil {
			return nil, err
		}
		cfg.Stream.URL = opts.url
	}
	if cfg.Stream.URL == "" {
		return nil, errors.New("stream url is required (--url or stream.url)")
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	if opts.archiveSQLite != "" {
		cfg.Archive.Enabled = true
		cfg.Archive.Driver = "sqlite"
		cfg.Archive.SQLitePath = opts.archiveSQLite
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

func newTransport(cfg config.StreamConfig, token auth.TokenSource) connection.Transport {
	h := connection.NewHTTPTransport(auth.NewStreamClient(token))
	ws := connection.NewWebSocketTransport(token)

	switch cfg.Transport {
	case "sse":
		return h
	case "websocket":
		return ws
	default:
		return connection.NewAutoTransport(h, ws)
	}
}

func managerConfig(cfg config.StreamConfig, transport connection.Transport) connection.ManagerConfig {
	return connection.ManagerConfig{
		Transport:        transport,
		Charset:          cfg.Charset,
		ReadBufferSize:   cfg.ReadBufferSize,
		OpenTimeout:      cfg.OpenTimeout,
		ReassembleFrames: cfg.Reassemble(),
		MaxPendingFrame:  cfg.MaxPendingFrame,
	}
}

func openStore(ctx context.Context, cfg config.ArchiveConfig, logger *slog.Logger) (archive.Store, error) {
	switch cfg.Driver {
	case "postgres":
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect archive database: %w", err)
		}
		store, err := archive.NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		logger.Info("opening archive", "path", cfg.SQLitePath)
		return archive.NewSQLiteStore(cfg.SQLitePath)
	}
}

func runWatch(ctx context.Context, opts watchOptions, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log, stderr)
	logger.Info("starting ssewatch",
		"version", version.Version,
		"commit", version.Commit,
		"url", cfg.Stream.URL,
		"transport", cfg.Stream.Transport,
	)

	token, err := auth.LoadTokenSource(cfg.Auth.Token, cfg.Auth.TokenPath)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}

	holder := lifecycle.NewHolder(
		lifecycle.NewFactory(managerConfig(cfg.Stream, newTransport(cfg.Stream, token)), logger),
		logger,
	)
	defer holder.DestroyAll()

	m, err := holder.Acquire(cfg.Stream.URL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	var writer *archive.Writer
	if cfg.Archive.Enabled {
		store, err := openStore(ctx, cfg.Archive, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		writer = archive.NewWriter(archive.WriterConfig{
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
			BufferSize:    cfg.Archive.BufferSize,
		}, store, logger)
		g.Go(func() error {
			err := writer.Run(gctx)
			stats := writer.Stats()
			logger.Info("archive closed",
				"inserts", stats.Inserts,
				"dropped", stats.Dropped,
				"errors", stats.Errors,
			)
			if err != nil {
				return fmt.Errorf("archive: %w", err)
			}
			return nil
		})
	}

	w := newWatcher(stdout, m.URL(), opts.maxMessages, writer)
	unsubscribe, _ := m.Subscribe(w.observe)
	defer unsubscribe()

	// The watch ends the group; the writer then flushes and returns.
	g.Go(func() error {
		defer cancel()
		select {
		case <-gctx.Done():
			logger.Info("shutting down")
			return nil
		case err := <-w.ended:
			return err
		}
	})
	return g.Wait()
}

// watcher prints states and decides when watching is over.
type watcher struct {
	enc      *json.Encoder
	url      string
	max      int
	writer   *archive.Writer
	started  bool
	messages int
	ended    chan error
}

// stateLine is the JSON form of one printed state.
type stateLine struct {
	Time     time.Time       `json:"time"`
	ClientID string          `json:"client_id"`
	Phase    string          `json:"phase"`
	Seq      uint64          `json:"seq,omitempty"`
	Message  json.RawMessage `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func newWatcher(out io.Writer, url string, max int, writer *archive.Writer) *watcher {
	return &watcher{
		enc:    json.NewEncoder(out),
		url:    url,
		max:    max,
		writer: writer,
		ended:  make(chan error, 1),
	}
}

// observe runs on the broadcaster; calls never overlap.
func (w *watcher) observe(s *connection.State) {
	if w.writer != nil {
		w.writer.Observe(w.url, s)
	}

	line := stateLine{
		Time:     time.Now().UTC(),
		ClientID: s.ClientID,
		Phase:    s.Phase.String(),
		Seq:      s.Seq,
		Error:    s.Err,
	}
	if s.Connected() {
		line.Message = s.LastMessage
	}
	if err := w.enc.Encode(line); err != nil {
		w.finish(fmt.Errorf("write output: %w", err))
		return
	}

	switch s.Phase {
	case connection.PhaseConnecting:
		w.started = true
	case connection.PhaseConnected:
		w.messages++
		if w.max > 0 && w.messages >= w.max {
			w.finish(nil)
		}
	case connection.PhaseDisconnected:
		if !w.started {
			return
		}
		if s.HasError() {
			w.finish(fmt.Errorf("stream: %s", s.Err))
		} else {
			w.finish(nil)
		}
	}
}

func (w *watcher) finish(err error) {
	select {
	case w.ended <- err:
	default:
	}
}
