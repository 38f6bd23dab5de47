package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tinygems/tinygems/internal/artist"
	"github.com/tinygems/tinygems/internal/config"
	"github.com/tinygems/tinygems/internal/database"
	"github.com/tinygems/tinygems/internal/logging"
	"github.com/tinygems/tinygems/internal/match"
	"github.com/tinygems/tinygems/internal/resolve"
)

type resolveOptions struct {
	asJSON        bool
	save          bool
	minConfidence float64
}

func newResolveCmd(configPath *string) *cobra.Command {
	var opts resolveOptions
	cmd := &cobra.Command{
		Use:   "resolve <name or profile url>",
		Short: "Search every configured platform for an artist and print the candidates",
		Long: "Search every configured platform for an artist and print the ranked candidates.\n" +
			"With --save, the top candidate of each platform scoring at least --min-confidence\n" +
			"is connected and the merged profile is stored in the database.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), *configPath, strings.Join(args, " "), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the session snapshot as JSON")
	cmd.Flags().BoolVar(&opts.save, "save", false, "connect confident matches and store the profile")
	cmd.Flags().Float64Var(&opts.minConfidence, "min-confidence", 0.9, "lowest confidence --save connects automatically")
	return cmd
}

func runResolve(ctx context.Context, configPath, input string, opts resolveOptions, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// Logs go to stderr so stdout stays parseable.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if cfg.Logging.Level == "debug" {
		logManager, l := logging.NewManager(cfg.Logging)
		defer logManager.Close() //nolint:errcheck
		logger = l
	}

	registry := buildRegistry(cfg, logger)
	if registry.Len() == 0 {
		return fmt.Errorf("no platforms configured")
	}
	coordinator, closeCache, err := buildCoordinator(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	resolverOpts := []resolve.Option{
		resolve.WithMaxCandidates(cfg.Search.MaxCandidates),
		resolve.WithScorer(match.NewScorer(cfg.Search.Weights)),
	}
	if opts.save {
		db, err := database.Open(ctx, cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close() //nolint:errcheck
		if err := database.Migrate(ctx, db, logger); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		resolverOpts = append(resolverOpts, resolve.WithStore(artist.NewService(db)))
	}
	resolver := resolve.NewResolver(coordinator, registry, logger, resolverOpts...)

	session, err := resolver.Start(ctx, input)
	if err != nil {
		return err
	}
	defer session.Abandon()

	snap, err := session.SearchAll(ctx)
	if err != nil {
		return err
	}

	if opts.save {
		profile, err := saveConfident(ctx, session, snap, opts.minConfidence)
		if err != nil {
			return err
		}
		if opts.asJSON {
			return writeIndentedJSON(out, profile)
		}
		fmt.Fprintf(out, "saved %s as %s (combined popularity %.1f)\n",
			profile.Name, profile.ID, profile.CombinedPopularity)
		return nil
	}

	if opts.asJSON {
		return writeIndentedJSON(out, snap)
	}
	return printSnapshot(out, snap)
}

// saveConfident connects each searched platform's top candidate that clears
// minConfidence and finalizes the session.
func saveConfident(ctx context.Context, s *resolve.Session, snap resolve.Snapshot, minConfidence float64) (*resolve.Profile, error) {
	for _, ps := range snap.Platforms {
		if ps.Connected() || len(ps.Candidates) == 0 {
			continue
		}
		top := ps.Candidates[0]
		if top.Confidence < minConfidence {
			continue
		}
		if _, err := s.Connect(ctx, ps.Platform, resolve.ConnectTarget{CandidateID: top.ArtistID}); err != nil {
			return nil, fmt.Errorf("connecting %s: %w", ps.Platform, err)
		}
	}
	return s.Finalize(ctx, resolve.Overrides{})
}

func printSnapshot(out io.Writer, snap resolve.Snapshot) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Seed:\t%s\n\n", snap.Seed.Name)
	fmt.Fprintln(tw, "PLATFORM\tSTATUS\tCONFIDENCE\tNAME\tURL")
	for _, ps := range snap.Platforms {
		switch {
		case ps.Connected():
			d := ps.ConnectedData
			fmt.Fprintf(tw, "%s\tconnected\t\t%s\t%s\n", ps.Platform.DisplayName(), d.Name, d.URL)
		case len(ps.Candidates) == 0:
			detail := ps.Error
			fmt.Fprintf(tw, "%s\t%s\t\t%s\t\n", ps.Platform.DisplayName(), ps.Status, detail)
		default:
			for i, c := range ps.Candidates {
				label, status := "", ""
				if i == 0 {
					label, status = ps.Platform.DisplayName(), string(ps.Status)
				}
				fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n", label, status, c.Confidence, c.ArtistName, c.ArtistURL)
			}
		}
	}
	return tw.Flush()
}

func writeIndentedJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
