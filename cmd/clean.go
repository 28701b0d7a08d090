package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/reapertools/clonereaper/pkg/config"
	"github.com/reapertools/clonereaper/pkg/logger"
	"github.com/reapertools/clonereaper/pkg/notification"
	"github.com/reapertools/clonereaper/pkg/retention"
)

func CleanCommand() *cobra.Command {
	var flags scanFlags
	var flagStrategy string

	command := &cobra.Command{
		Use:   "clean [DIRECTORY]",
		Short: "Remove redundant copies of duplicate files",
		Long: `This command scans a directory tree for byte-identical files and removes all
but one member of each duplicate set, chosen by the retention strategy.`,

		Args: cobra.ExactArgs(1),
	}

	registerScanFlags(command, &flags)
	command.Flags().StringVar(&flagStrategy, "keep", "",
		"Retention strategy ("+strings.Join(retention.Strategies(), ", ")+")")

	command.Run = func(cmd *cobra.Command, args []string) {
		start := time.Now()

		// init core
		if !initialized {
			initCore(true)
			initialized = true
		}

		// set log
		log := logger.GetLogger("clean")

		noti := notification.NewWebhookSender(log, config.Config.Notifications)

		cfg := applyScanFlags(cmd, &flags)

		strategyName := config.Config.Retention.Strategy
		if cmd.Flags().Changed("keep") {
			strategyName = flagStrategy
		}

		strategy, err := retention.ParseStrategy(strategyName)
		if err != nil {
			log.WithError(err).Fatal("Failed validating retention strategy")
		}

		_, results, err := runPipeline(args[0], cfg, log)
		if err != nil {
			log.WithError(err).Fatal("Failed scanning for duplicates")
		}

		if len(results.Duplicates) == 0 {
			log.Info("No duplicate files found, nothing to clean")
			return
		}

		log.Infof("Found %d duplicate sets, wasted space: %s (keeping: %s)",
			len(results.Duplicates), humanize.IBytes(results.WastedBytes), strategy)

		planner := retention.NewPlanner(strategy)

		var (
			removedFiles   uint64
			removeFailures uint64
			freedBytes     uint64
			fields         []notification.Field
		)

		for _, digest := range sortedKeys(results.Duplicates) {
			set := results.Duplicates[digest]
			plan := planner.Plan(set)

			log.Info("-----")
			log.Infof("Keeping: %q", plan.Keep)

			var setFreed uint64
			var setRemoved int
			for _, path := range plan.Remove {
				size := results.SetSizes[digest]
				if info, err := os.Lstat(path); err == nil {
					size = info.Size()
				}

				if FlagDryRun {
					log.Warnf("Dry-run enabled, skipping remove: %q", path)
				} else {
					if err := os.Remove(path); err != nil {
						log.WithError(err).Errorf("Failed removing duplicate: %q", path)
						removeFailures++
						continue
					}
					log.Infof("Removed: %q (%s)", path, humanize.IBytes(uint64(size)))
				}

				removedFiles++
				freedBytes += uint64(size)
				setRemoved++
				setFreed += uint64(size)
			}

			fields = append(fields, noti.BuildField(notification.ActionClean, notification.BuildOptions{
				Keep:    plan.Keep,
				Removed: setRemoved,
				Freed:   int64(setFreed),
			}))
		}

		if planner.Fallbacks() > 0 {
			log.Warnf("Fell back to %q strategy for %d sets", retention.First, planner.Fallbacks())
		}

		log.Info("-----")
		log.WithField("freed_space", humanize.IBytes(freedBytes)).
			Infof("Removed %d duplicate files with %d failures", removedFiles, removeFailures)

		if !noti.CanSend() {
			log.Debug("Notifications disabled, skipping...")
			return
		}

		sendErr := noti.Send(
			"Clean",
			fmt.Sprintf("Removed **%d** duplicate files | Total freed **%s**",
				removedFiles, humanize.IBytes(freedBytes)),
			time.Since(start),
			fields,
			FlagDryRun,
		)
		if sendErr != nil {
			log.WithError(sendErr).Error("Failed sending notification")
		}
	}

	return command
}
