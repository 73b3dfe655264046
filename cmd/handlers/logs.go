package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"podgen/internal/genlog"
)

// NewLogsCmd creates the logs command for inspecting generation logs
func NewLogsCmd() *cobra.Command {
	var (
		useMemory bool
		podcastID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "logs [log-id]",
		Short: "Inspect generation logs",
		Long: `Show one generation log in detail, or list recent logs for a podcast:

  podgen logs 8d41...
  podgen logs --podcast 5f3c... --limit 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runShowLog(cmd.Context(), args[0], useMemory)
			}
			if podcastID == "" {
				return fmt.Errorf("a log id or --podcast is required")
			}
			return runListLogs(cmd.Context(), podcastID, limit, useMemory)
		},
	}

	cmd.Flags().BoolVar(&useMemory, "memory", false, "Use the in-memory document store instead of MongoDB")
	cmd.Flags().StringVar(&podcastID, "podcast", "", "List logs for this podcast")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of logs to list")

	return cmd
}

func runShowLog(ctx context.Context, id string, useMemory bool) error {
	a, cleanup, err := buildApp(ctx, useMemory)
	if err != nil {
		return err
	}
	defer cleanup(context.Background())

	l, err := a.db.GenerationLogs().Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load generation log: %w", err)
	}
	if l == nil {
		return fmt.Errorf("generation log %q not found", id)
	}

	printLog(l)
	return nil
}

func runListLogs(ctx context.Context, podcastID string, limit int, useMemory bool) error {
	a, cleanup, err := buildApp(ctx, useMemory)
	if err != nil {
		return err
	}
	defer cleanup(context.Background())

	logs, err := a.db.GenerationLogs().ListByPodcast(ctx, podcastID, limit)
	if err != nil {
		return fmt.Errorf("failed to list generation logs: %w", err)
	}
	if len(logs) == 0 {
		fmt.Printf("No generation logs for podcast %s\n", podcastID)
		return nil
	}

	for _, l := range logs {
		fmt.Printf("%s  %s  %-12s  %s\n",
			l.ID,
			l.Timestamp.Format(time.RFC3339),
			l.Status,
			time.Duration(l.Duration.TotalMs)*time.Millisecond)
	}
	return nil
}

func printLog(l *genlog.Log) {
	fmt.Printf("Log:      %s\n", l.ID)
	fmt.Printf("Podcast:  %s\n", l.PodcastID)
	if l.EpisodeID != "" {
		fmt.Printf("Episode:  %s\n", l.EpisodeID)
	}
	fmt.Printf("Started:  %s\n", l.Timestamp.Format(time.RFC3339))
	fmt.Printf("Status:   %s\n", l.Status)
	if l.Error != "" {
		fmt.Printf("Error:    %s\n", l.Error)
	}
	fmt.Printf("Duration: %s\n", time.Duration(l.Duration.TotalMs)*time.Millisecond)

	fmt.Println("Stages:")
	for _, stage := range genlog.Stages() {
		ms, ok := l.Duration.StageMs[stage]
		if !ok {
			continue
		}
		fmt.Printf("  %-18s %s\n", stage, time.Duration(ms)*time.Millisecond)
	}

	if len(l.Decisions) > 0 {
		fmt.Println("Decisions:")
		for _, d := range l.Decisions {
			fmt.Printf("  [%s] %s\n", d.Stage, d.Decision)
			if d.Reasoning != "" {
				fmt.Printf("      %s\n", d.Reasoning)
			}
		}
	}
}
