package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"club_archive/core-go/internal/archivemap"
	"club_archive/core-go/internal/config"
	"club_archive/core-go/internal/content"
	"club_archive/core-go/internal/httpapi"
	"club_archive/core-go/internal/loader"
	"club_archive/core-go/internal/mapprovider/headless"
	"club_archive/core-go/internal/markers"
	"club_archive/core-go/internal/metrics"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "club-archive",
		Short:         "Serve the club archive map",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var contentDir string
	rootCmd.PersistentFlags().StringVar(&contentDir, "content", "", "Venue content directory (overrides CONTENT_DIR)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(contentDir)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Report venues that cannot be placed on the map",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validate(cmd, contentDir)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(contentDir string) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if contentDir != "" {
		cfg.ContentDir = contentDir
	}
	return cfg, nil
}

func serve(contentDir string) error {
	cfg, err := loadConfig(contentDir)
	if err != nil {
		return err
	}
	logger := httpapi.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs := content.NewDir(logger, cfg.ContentDir)
	catalog, err := archivemap.LoadCatalog(ctx, logger, docs)
	if err != nil {
		return err
	}

	m := metrics.New()
	provider := headless.New(headless.Options{
		APIKey:        cfg.MapsAPIKey,
		ScriptURL:     cfg.MapsScriptURL,
		ClusterRadius: cfg.ClusterRadius,
	})
	if cfg.MapsAPIKey == "" {
		logger.Warn().Msg("MAPS_API_KEY is not set; map sessions will report a configuration error")
	}

	sessions := archivemap.NewRegistry(logger, loader.New(provider.Load, m), provider, catalog, archivemap.Config{
		Map: cfg.MapOptions(),
		Markers: markers.Options{
			MinZoom: cfg.MinZoom,
			MaxZoom: cfg.MaxZoom,
		},
	}, m, archivemap.RegistryOptions{
		MaxSessions: cfg.MaxSessions,
		TTL:         cfg.SessionTTL,
	})
	go sessions.Run(ctx)

	h := httpapi.NewHandler(logger, sessions, docs, m)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("content", cfg.ContentDir).Msg("club-archive listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
	return nil
}

// validate prints every venue left off the map and every group of venues
// sharing a location. It fails when anything was rejected.
func validate(cmd *cobra.Command, contentDir string) error {
	cfg, err := loadConfig(contentDir)
	if err != nil {
		return err
	}
	logger := httpapi.NewLogger("error", cfg.LogFormat)

	catalog, err := archivemap.LoadCatalog(cmd.Context(), logger, content.NewDir(logger, cfg.ContentDir))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d mappable venues\n", len(catalog.Entities))
	for _, r := range catalog.Rejected {
		fmt.Fprintf(out, "rejected %s: %s\n", r.Slug, r.Reason)
	}

	firsts := make([]string, 0, len(catalog.Colocated))
	for first := range catalog.Colocated {
		firsts = append(firsts, first)
	}
	sort.Strings(firsts)
	for _, first := range firsts {
		fmt.Fprintf(out, "colocated %s: %v\n", first, catalog.Colocated[first])
	}

	if len(catalog.Rejected) > 0 {
		return fmt.Errorf("%d venues cannot be mapped", len(catalog.Rejected))
	}
	return nil
}
