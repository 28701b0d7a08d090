package cmd

import (
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/reapertools/clonereaper/pkg/config"
	"github.com/reapertools/clonereaper/pkg/dedupe"
	"github.com/reapertools/clonereaper/pkg/hardlink"
	"github.com/reapertools/clonereaper/pkg/hasher"
	"github.com/reapertools/clonereaper/pkg/logger"
	"github.com/reapertools/clonereaper/pkg/runtime"
	"github.com/reapertools/clonereaper/pkg/scanner"
)

var (
	// Global flags
	FlagLogLevel     = 0
	FlagConfigFile   = "config.yaml"
	FlagConfigFolder = config.GetDefaultConfigDirectory("clonereaper", "config.yaml")
	FlagLogFile      = "activity.log"
	FlagDryRun       bool

	initialized bool
)

// initCore sets up logging and loads configuration. Fatal on failure; no
// command can run without either.
func initCore(showAppInfo bool) {
	logFilePath := ""
	if FlagLogFile != "" {
		logFilePath = filepath.Join(FlagConfigFolder, FlagLogFile)
	}

	if err := logger.Init(FlagLogLevel, logFilePath); err != nil {
		logrus.WithError(err).Fatal("Failed initializing logger")
	}

	if err := config.Init(filepath.Join(FlagConfigFolder, FlagConfigFile)); err != nil {
		logrus.WithError(err).Fatal("Failed initializing config")
	}

	if showAppInfo {
		logrus.Infof("Using clonereaper %s, commit: %s", runtime.Version, runtime.GitCommit)
	}
}

// scanFlags holds per-command overrides of the scan configuration.
type scanFlags struct {
	minSize   int64
	hashAlgo  string
	partial   bool
	hardlinks bool
	workers   int
}

func registerScanFlags(command *cobra.Command, flags *scanFlags) {
	command.Flags().Int64Var(&flags.minSize, "min-size", config.DefaultMinFileSize, "Minimum file size in bytes to consider")
	command.Flags().StringVar(&flags.hashAlgo, "algo", config.DefaultHashAlgo, "Hash algorithm ("+joinAlgos()+")")
	command.Flags().BoolVar(&flags.partial, "partial", false, "Use partial hash pre-check")
	command.Flags().BoolVar(&flags.hardlinks, "hardlinks", false, "Collapse hardlink aliases before hashing")
	command.Flags().IntVar(&flags.workers, "workers", 0, "Parallel hashing workers (0 = half the CPUs)")
}

// applyScanFlags overlays flags the user actually set onto the loaded config.
func applyScanFlags(command *cobra.Command, flags *scanFlags) config.ScanConfig {
	cfg := config.Config.Scan

	if command.Flags().Changed("min-size") {
		cfg.MinFileSize = flags.minSize
	}
	if command.Flags().Changed("algo") {
		cfg.HashAlgo = flags.hashAlgo
	}
	if command.Flags().Changed("partial") {
		cfg.PartialHash = flags.partial
	}
	if command.Flags().Changed("hardlinks") {
		cfg.CheckHardlinks = flags.hardlinks
	}
	if command.Flags().Changed("workers") {
		cfg.Workers = config.BoundWorkers(flags.workers)
	}

	return cfg
}

// runPipeline performs the scan and dedupe stages for a directory.
func runPipeline(dir string, cfg config.ScanConfig, log *logrus.Entry) (*scanner.Result, *dedupe.Results, error) {
	filter, err := scanner.NewFilter(cfg.Filters, cfg.IgnorePatterns)
	if err != nil {
		return nil, nil, err
	}

	h, err := hasher.New(cfg.HashAlgo, config.DefaultChunkSize)
	if err != nil {
		return nil, nil, err
	}

	log.Infof("Scanning %q for files >= %d bytes...", dir, cfg.MinFileSize)

	scanRes, err := scanner.New(cfg.MinFileSize, filter).Scan(dir)
	if err != nil {
		return nil, nil, err
	}

	log.Infof("Scanned %d files (%d skipped), %d sizes with potential duplicates",
		scanRes.Scanned, scanRes.Skipped, len(scanRes.Buckets))

	resolver := hardlink.NewResolver(cfg.CheckHardlinks)
	if cfg.CheckHardlinks && !resolver.Supported() {
		log.Warn("Hardlink check is not supported on this platform, skipping")
	}

	engine := dedupe.NewEngine(h, cfg.Workers, cfg.PartialHash)
	return scanRes, engine.Run(scanRes, resolver), nil
}

func joinAlgos() string {
	out := ""
	for i, name := range hasher.Algorithms() {
		if i > 0 {
			out += ", "
		}
		out += name
	}
	return out
}
