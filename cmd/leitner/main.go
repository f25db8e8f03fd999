package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conorfennell/leitner/internal/clock"
	"github.com/conorfennell/leitner/internal/config"
	"github.com/conorfennell/leitner/internal/domain"
	"github.com/conorfennell/leitner/internal/logger"
	"github.com/conorfennell/leitner/internal/parser"
	"github.com/conorfennell/leitner/internal/session"
	"github.com/conorfennell/leitner/internal/storage"
	"github.com/conorfennell/leitner/internal/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "leitner",
		Short:         "Leitner box flashcard reviews over CSV decks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	root.PersistentFlags().String("db", "leitner.db", "SQLite database holding review progress")
	root.PersistentFlags().String("env", "production", "development or production")
	root.PersistentFlags().String("log-level", "info", "debug, info, warn or error")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newBoxesCmd(&configPath))
	root.AddCommand(newReviewCmd(&configPath))
	root.AddCommand(newResumeCmd(&configPath))
	root.AddCommand(newHistoryCmd(&configPath))
	root.AddCommand(newResetCmd(&configPath))
	root.AddCommand(newImportCmd())
	root.AddCommand(newExportCmd(&configPath))
	root.AddCommand(newClearCmd(&configPath))
	root.AddCommand(newSourceCmd(&configPath))
	return root
}

type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *storage.DB
	engine  *session.Engine
	sources *storage.Sources
}

func (a *app) Close() {
	_ = a.log.Sync()
	if err := a.db.Close(); err != nil {
		a.log.Error("failed to close database", zap.Error(err))
	}
}

func loadApp(cmd *cobra.Command, configPath string) (*app, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(cfg.DB)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", cfg.DB)
	}
	log.Debug("database opened", zap.String("path", cfg.DB))

	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		engine:  session.NewEngine(db, clock.SystemClock{}, log),
		sources: storage.NewSources(db, log),
	}, nil
}

// loadDeck reads a deck file into the engine under its base name.
func (a *app) loadDeck(ctx context.Context, path string) (session.LoadResult, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return session.LoadResult{}, errors.Wrapf(err, "failed to read deck %s", path)
	}
	return a.engine.LoadDeck(ctx, filepath.Base(path), string(text))
}

func newServeCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the review JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := web.NewServer(a.engine, a.sources, a.cfg.Source, a.log)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() { errc <- srv.Start(a.cfg.Addr) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	return cmd
}

func newBoxesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "boxes <deck.csv>",
		Short: "Show card counts and due reviews per box",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.loadDeck(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			boxes, err := a.engine.Boxes()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "BOX\tCARDS\tREVIEW")
			for _, b := range boxes {
				review := "-"
				switch {
				case b.Review.Due:
					review = fmt.Sprintf("%d due now", b.Review.DueCount)
				case b.Review.NextDueAt != nil:
					review = "next " + b.Review.NextDueAt.Format("2006-01-02")
				}
				_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\n", b.Box, b.Count, review)
			}
			return tw.Flush()
		},
	}
}

func newReviewCmd(configPath *string) *cobra.Command {
	var box, card int

	cmd := &cobra.Command{
		Use:   "review <deck.csv>",
		Short: "Review one box, or a box starting from a given card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if _, err := a.loadDeck(ctx, args[0]); err != nil {
				return err
			}
			if cmd.Flags().Changed("card") {
				_, err = a.engine.StartFromCard(ctx, card)
			} else {
				_, err = a.engine.StartBox(ctx, box)
			}
			if err != nil {
				return err
			}
			step, err := a.engine.Advance(ctx)
			if err != nil {
				return err
			}
			return runReview(ctx, a.engine, step, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&box, "box", domain.MinBox, "box to review")
	cmd.Flags().IntVar(&card, "card", 0, "start from this card id and review its box")
	return cmd
}

func newResumeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <session-id> <deck.csv>",
		Short: "Continue a stored session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			step, err := a.engine.Resume(ctx, args[0])
			var required *session.DeckRequiredError
			if errors.As(err, &required) {
				if required.DeckName != filepath.Base(args[1]) {
					return errors.Errorf("session %s belongs to deck %s", args[0], required.DeckName)
				}
				res, err := a.loadDeck(ctx, args[1])
				if err != nil {
					return err
				}
				if res.Step == nil {
					return errors.Errorf("session %s could not be continued", args[0])
				}
				step = *res.Step
			} else if err != nil {
				return err
			}
			return runReview(ctx, a.engine, step, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newHistoryCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.engine.History(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(report.Entries) == 0 {
				_, _ = fmt.Fprintln(out, "no sessions")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tDECK\tDOMAIN\tSTARTED\tSTATUS\tSCORE\tLEFT\tCYCLES")
			for _, e := range report.Entries {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%d\t%d\n",
					e.ID, e.DeckName, e.Domain, e.StartTime.Local().Format("2006-01-02 15:04"),
					e.Status, e.Correct, e.Correct+e.Wrong, e.Remaining, e.Cycles)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			h := report.History
			_, _ = fmt.Fprintf(out, "\n%d completed sessions, %d cards reviewed, %d%% correct\n",
				h.CompletedSessions, h.TotalReviewed, h.SuccessRate)
			return nil
		},
	}
}

func newResetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <deck.csv>",
		Short: "Move every card of a deck back to box 1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.loadDeck(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := a.engine.ResetDeck(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", filepath.Base(args[0]))
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Validate a CSV file against the deck schema and write it normalized",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "failed to read %s", args[0])
			}
			now := time.Now()
			cards, err := parser.Import(string(text), now)
			if err != nil {
				return err
			}
			if err := writeDeck(cmd, out, cards, now); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "imported %d cards\n", len(cards))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newExportCmd(configPath *string) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <deck.csv>",
		Short: "Write a deck with its stored review progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.loadDeck(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeDeck(cmd, out, res.Deck.Cards, time.Now())
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func writeDeck(cmd *cobra.Command, out string, cards []domain.Card, now time.Time) error {
	if out == "" {
		return parser.Export(cmd.OutOrStdout(), cards, now)
	}
	f, err := os.Create(out)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", out)
	}
	if err := parser.Export(f, cards, now); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newClearCmd(configPath *string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Erase all sessions, card progress and cycle counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear history without --yes")
			}
			a, err := loadApp(cmd, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.ClearAll(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}

func newSourceCmd(configPath *string) *cobra.Command {
	source := &cobra.Command{Use: "source", Short: "Deck repository settings"}

	source.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the deck repository",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			src, err := a.sources.Load(cmd.Context(), a.cfg.Source)
			if err != nil {
				return err
			}
			printSource(cmd, src)
			return nil
		},
	})

	var owner, repo, branch, path string
	set := &cobra.Command{
		Use:   "set",
		Short: "Store the deck repository",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			current, err := a.sources.Load(cmd.Context(), a.cfg.Source)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("owner") {
				current.Owner = owner
			}
			if flags.Changed("repo") {
				current.Repo = repo
			}
			if flags.Changed("branch") {
				current.Branch = branch
			}
			if flags.Changed("path") {
				current.Path = path
			}
			saved, err := a.sources.Save(cmd.Context(), current)
			if err != nil {
				return err
			}
			printSource(cmd, saved)
			return nil
		},
	}
	set.Flags().StringVar(&owner, "owner", "", "repository owner")
	set.Flags().StringVar(&repo, "repo", "", "repository name")
	set.Flags().StringVar(&branch, "branch", "main", "branch")
	set.Flags().StringVar(&path, "path", "", "folder holding the CSV decks")

	source.AddCommand(set)
	return source
}

func printSource(cmd *cobra.Command, src domain.SourceConfig) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "owner:  %s\nrepo:   %s\nbranch: %s\npath:   %s\n",
		src.Owner, src.Repo, src.Branch, src.Path)
}
