package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"notechat/controller"
	"notechat/db"
	"notechat/utils"
)

func newListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List chats, most recently active first",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.Close()

			chats, err := env.service.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			controller.SortByActivity(chats)
			return writeChatList(cmd.OutOrStdout(), chats)
		},
	}
}

func writeChatList(out io.Writer, chats []*db.Chat) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMESSAGES\tLAST ACTIVITY")
	for _, c := range chats {
		name := c.Name
		if strings.TrimSpace(name) == "" {
			name = "(untitled)"
		}
		last := "-"
		if len(c.Messages) > 0 {
			last = c.LastMessageTime().Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", c.ID, name, len(c.Messages), last)
	}
	return w.Flush()
}

func newStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show storage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.Close()

			stats, err := env.service.Stats(cmd.Context())
			if err != nil {
				return err
			}
			writeStats(cmd.OutOrStdout(), env.service.Location(), stats)
			return nil
		},
	}
}

func writeStats(out io.Writer, location string, stats *db.StorageStats) {
	fmt.Fprintf(out, "Storage:       %s (%s)\n", location, utils.FormatFileSize(stats.DocumentBytes))
	fmt.Fprintf(out, "Chats:         %d\n", stats.ChatCount)
	fmt.Fprintf(out, "Messages:      %d\n", stats.MessageCount)

	types := make([]string, 0, len(stats.TypeCounts))
	for t := range stats.TypeCounts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(out, "  %-11s  %d\n", t, stats.TypeCounts[db.MessageType(t)])
	}

	fmt.Fprintf(out, "Images:        %d (%s)\n", stats.ImageCount, utils.FormatFileSize(stats.ImageBytes))
	if stats.MessageCount > 0 {
		fmt.Fprintf(out, "Last activity: %s\n", stats.LastActivity.Local().Format("2006-01-02 15:04:05"))
	}
}

// defaultPruneAge covers the autosave window of an app running alongside the CLI
const defaultPruneAge = 10 * time.Minute

func newCheckCmd(configPath *string) *cobra.Command {
	var (
		prune  bool
		minAge time.Duration
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Find orphaned image files and messages whose image is missing",
		Long: `Find orphaned image files and messages whose image is missing.

With --prune, orphaned images are deleted. An image attached in a running
app is orphaned until the app saves its chats, so files younger than
--min-age are kept. Images mentioned by a quarantined chat document are
never pruned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.Close()

			report, err := env.service.Check(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			writeReport(out, report)

			if !prune {
				return nil
			}
			pruned, err := env.service.PruneOrphans(cmd.Context(), minAge)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Pruned %d orphaned image(s)\n", len(pruned))
			return env.service.Compact()
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "Delete orphaned image files")
	cmd.Flags().DurationVar(&minAge, "min-age", defaultPruneAge, "Keep orphaned images written more recently than this")
	return cmd
}

func writeReport(out io.Writer, report *db.IntegrityReport) {
	if report.Clean() && len(report.Quarantined) == 0 {
		fmt.Fprintln(out, "No problems found")
		return
	}
	for _, name := range report.Orphans {
		fmt.Fprintf(out, "orphaned image: %s\n", name)
	}
	for _, d := range report.Dangling {
		fmt.Fprintf(out, "missing image:  %s (chat %s, message %s)\n", d.Filename, d.ChatID, d.MessageID)
	}
	for _, path := range report.Quarantined {
		fmt.Fprintf(out, "quarantined:    %s\n", path)
	}
	for _, name := range report.Preserved {
		fmt.Fprintf(out, "kept image:     %s (mentioned by a quarantined document)\n", name)
	}
}

func newExportCmd(configPath *string) *cobra.Command {
	var (
		format string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all chats with their images",
		RunE: func(cmd *cobra.Command, args []string) error {
			exportFormat, err := db.ParseExportFormat(format)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir, err = os.Getwd()
				if err != nil {
					return err
				}
			}

			env, err := openEnvironment(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.Close()

			chats, err := env.service.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			controller.SortByActivity(chats)

			path, err := db.ExportChats(chats, env.service.Images(), outDir, exportFormat)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d chats to %s\n", len(chats), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Export format: json, markdown or html")
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (default: current directory)")
	return cmd
}
