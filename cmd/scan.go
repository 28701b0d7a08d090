package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/reapertools/clonereaper/pkg/config"
	"github.com/reapertools/clonereaper/pkg/dedupe"
	"github.com/reapertools/clonereaper/pkg/logger"
	"github.com/reapertools/clonereaper/pkg/notification"
)

func ScanCommand() *cobra.Command {
	var flags scanFlags

	command := &cobra.Command{
		Use:   "scan [DIRECTORY]",
		Short: "Find duplicate files in a directory tree",
		Long:  `This command scans a directory tree and reports sets of byte-identical files, without removing anything.`,

		Args: cobra.ExactArgs(1),
	}

	registerScanFlags(command, &flags)

	command.Run = func(cmd *cobra.Command, args []string) {
		start := time.Now()

		// init core
		if !initialized {
			initCore(true)
			initialized = true
		}

		// set log
		log := logger.GetLogger("scan")

		noti := notification.NewWebhookSender(log, config.Config.Notifications)

		cfg := applyScanFlags(cmd, &flags)

		_, results, err := runPipeline(args[0], cfg, log)
		if err != nil {
			log.WithError(err).Fatal("Failed scanning for duplicates")
		}

		fields := reportResults(results, noti, log)

		log.Info("-----")
		log.WithField("wasted_space", humanize.IBytes(results.WastedBytes)).
			Infof("Found %d duplicate sets (%d redundant files) and %d hardlink sets. Skipped %d unreadable files",
				len(results.Duplicates), results.DuplicateCount(), len(results.Hardlinks), results.Skipped)

		if !noti.CanSend() {
			log.Debug("Notifications disabled, skipping...")
			return
		}

		sendErr := noti.Send(
			"Scan",
			fmt.Sprintf("Found **%d** duplicate sets | Potential savings **%s**",
				len(results.Duplicates), humanize.IBytes(results.WastedBytes)),
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

// reportResults logs hardlink and duplicate sets and builds notification
// fields for them. Sets are printed in sorted key order so output is stable.
func reportResults(results *dedupe.Results, noti notification.Sender, log *logrus.Entry) []notification.Field {
	var fields []notification.Field

	if len(results.Hardlinks) > 0 {
		log.Info("-----")
		log.WithField("shared_space", humanize.IBytes(results.SharedBytes)).
			Infof("Hardlinks found (sharing space, not true duplicates): %d sets", len(results.Hardlinks))

		for _, id := range sortedKeys(results.Hardlinks) {
			paths := results.Hardlinks[id]
			size := results.HardlinkSizes[id]

			log.Infof("ID %s: %d links (%s)", id, len(paths), humanize.IBytes(uint64(size)))
			for _, p := range paths {
				log.Infof("  - %s", p)
			}

			fields = append(fields, noti.BuildField(notification.ActionHardlinks, notification.BuildOptions{
				FileID:  id,
				Size:    size,
				Members: paths,
			}))
		}
	}

	if len(results.Duplicates) == 0 {
		log.Info("No duplicate files found")
		return fields
	}

	log.Info("-----")

	for _, digest := range sortedKeys(results.Duplicates) {
		paths := results.Duplicates[digest]
		size := results.SetSizes[digest]

		log.Infof("Hash %.12s... (%d files, %s each)", digest, len(paths), humanize.IBytes(uint64(size)))
		for _, p := range paths {
			log.Infof("  - %s", p)
		}

		fields = append(fields, noti.BuildField(notification.ActionDuplicates, notification.BuildOptions{
			Digest:  digest,
			Size:    size,
			Members: paths,
		}))
	}

	return fields
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
