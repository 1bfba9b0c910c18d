// Package main provides the embedurl binary, a go generate driver that
// caches remote resources and writes them into Go source files.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/meigma/embedurl"
)

const (
	Version = "0.1.0"
	appName = "embedurl"

	envCacheDir = "EMBEDURL_CACHE_DIR"
	envPackage  = "GOPACKAGE"

	defaultNamespace = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	cacheDir  string
	namespace string
	logLevel  string
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&g.cacheDir, "cache-dir", "", "Cache root (default $"+envCacheDir+" or the user cache dir)")
	fs.StringVar(&g.namespace, "namespace", "", "Cache namespace (default $"+envPackage+")")
	fs.StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Embed remote resources into Go source at generate time",
		Long: `embedurl fetches a URL once, stores the (optionally compressed) body in a
content-addressed cache, and writes it into a Go source file.

Typical use from a go:generate directive:

	//go:generate embedurl gen --url https://example.com/data.json --kind json --name Data -o data_gen.go

Later runs with the same URL and encoding are served from the cache without
network access.`,
		SilenceUsage: true,
	}
	g.register(cmd.PersistentFlags())

	cmd.AddCommand(
		fetchCmd(g),
		genCmd(g),
		syncCmd(g),
		infoCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

func (g *globalFlags) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	switch strings.ToLower(g.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (g *globalFlags) resolveCacheDir() (string, error) {
	if g.cacheDir != "" {
		return g.cacheDir, nil
	}
	if dir := os.Getenv(envCacheDir); dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	return filepath.Join(base, appName), nil
}

func (g *globalFlags) resolveNamespace(override string) string {
	switch {
	case override != "":
		return override
	case g.namespace != "":
		return g.namespace
	case os.Getenv(envPackage) != "":
		return os.Getenv(envPackage)
	default:
		return defaultNamespace
	}
}

func (g *globalFlags) store(cmd *cobra.Command) (*embedurl.Store, error) {
	dir, err := g.resolveCacheDir()
	if err != nil {
		return nil, err
	}
	return embedurl.New(dir, embedurl.WithLogger(g.logger(cmd)))
}
