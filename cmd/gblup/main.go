// Command gblup runs the genomic prediction engine from the command line:
// it builds relationship matrices and solves the GBLUP mixed model over
// JSON inputs, with binary snapshot output for large matrices.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/breedkit/gblup"
	"github.com/breedkit/gblup/resource"
)

var exampleUsage = strings.TrimSpace(`
  gblup grm -i dosages.json -o grm.bin
  gblup solve -i request.json --heritability 0.4
  gblup run -i combined.json -o result.json
  gblup cv -i combined.json --folds 5 --repeats 2
  gblup freq -i dosages.json
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "gblup",
		Short:   "Genomic prediction: GRM construction and GBLUP breeding values",
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
			cmd.Root().PersistentFlags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && FileExists(cfgFile) {
				fc, err := LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				ApplyFileConfig(&cfg, fc, changed)
			}
			ApplyEnvConfig(&cfg, changed)
			return nil
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "config file (default ~/.gblup/config.toml)")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	pf.BoolVar(&cfg.JSONLog, "json-log", cfg.JSONLog, "emit JSON-formatted logs")
	pf.IntVar(&cfg.Workers, "workers", cfg.Workers, "worker pool size (0 = GOMAXPROCS)")
	pf.Int64Var(&cfg.MaxConcurrentSolves, "max-solves", cfg.MaxConcurrentSolves, "maximum concurrent matrix solves")
	pf.Int64Var(&cfg.MemoryLimitMB, "memory-limit-mb", cfg.MemoryLimitMB, "solve memory limit in MiB (0 = unlimited)")
	pf.StringVar(&cfg.Compression, "compression", cfg.Compression, "snapshot compression: none, lz4, zstd")

	root.AddCommand(
		newGRMCommand(&cfg),
		newSolveCommand(&cfg),
		newRunCommand(&cfg),
		newCVCommand(&cfg),
		newFreqCommand(&cfg),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newEngine builds an engine from the resolved CLI configuration.
func newEngine(cfg *Config) (*gblup.Engine, error) {
	var logger *gblup.Logger
	if cfg.JSONLog {
		logger = gblup.NewJSONLogger(logLevel(cfg.LogLevel))
	} else {
		logger = gblup.NewTextLogger(logLevel(cfg.LogLevel))
	}

	ctrl := resource.NewController(resource.Config{
		MaxConcurrentSolves: cfg.MaxConcurrentSolves,
		MemoryLimitBytes:    cfg.MemoryLimitMB << 20,
	})

	return gblup.New(
		gblup.WithLogger(logger),
		gblup.WithResourceController(ctrl),
		gblup.WithNumWorkers(cfg.Workers),
	)
}
