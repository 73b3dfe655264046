package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"podgen/internal/core"
	"podgen/internal/pipeline"
)

// NewGenerateCmd creates the generate command for one-shot episode runs
func NewGenerateCmd() *cobra.Command {
	var (
		minutes   int
		words     int
		topic     string
		useMemory bool
		title     string
		theme     string
	)

	cmd := &cobra.Command{
		Use:   "generate [podcast-id]",
		Short: "Generate one episode synchronously",
		Long: `Run the full generation pipeline for a podcast and wait for it to
finish. Prints the generation log id either way, so failed runs can be
inspected with 'podgen logs'.

With --title an ad-hoc podcast is created in the in-memory store, which
is handy for trying the pipeline without MongoDB:

  podgen generate --title "Energy Weekly" --theme "power grid news" --memory

Otherwise the podcast id must refer to an existing podcast:

  podgen generate 5f3c... --minutes 15 --topic "grid storage"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) > 0 {
				id = args[0]
			}
			return runGenerate(cmd.Context(), id, title, theme, useMemory, pipeline.GenerateOptions{
				TargetMinutes: minutes,
				TargetWords:   words,
				SelectedTopic: topic,
			})
		},
	}

	cmd.Flags().IntVar(&minutes, "minutes", 0, "Target episode length in minutes")
	cmd.Flags().IntVar(&words, "words", 0, "Target episode length in words (overrides --minutes)")
	cmd.Flags().StringVar(&topic, "topic", "", "Pin the episode to this topic instead of automatic prioritization")
	cmd.Flags().BoolVar(&useMemory, "memory", false, "Use the in-memory document store instead of MongoDB")
	cmd.Flags().StringVar(&title, "title", "", "Create an ad-hoc podcast with this title (implies --memory)")
	cmd.Flags().StringVar(&theme, "theme", "", "Editorial theme for the ad-hoc podcast")

	return cmd
}

func runGenerate(ctx context.Context, podcastID, title, theme string, useMemory bool, opts pipeline.GenerateOptions) error {
	if podcastID == "" && title == "" {
		return fmt.Errorf("a podcast id or --title is required")
	}
	if title != "" {
		useMemory = true
	}

	a, cleanup, err := buildApp(ctx, useMemory)
	if err != nil {
		return err
	}
	defer cleanup(context.Background())

	var podcast *core.Podcast
	if title != "" {
		podcast = &core.Podcast{
			ID:          uuid.NewString(),
			Title:       title,
			Description: theme,
			Voice: core.VoiceConfig{
				Provider: a.cfg.TTS.Provider,
				VoiceID:  a.cfg.TTS.DefaultVoice,
				Speed:    a.cfg.TTS.DefaultSpeed,
			},
			CreatedAt: time.Now().UTC(),
		}
		if err := a.db.Podcasts().Create(ctx, podcast); err != nil {
			return fmt.Errorf("failed to create ad-hoc podcast: %w", err)
		}
	} else {
		podcast, err = a.db.Podcasts().Get(ctx, podcastID)
		if err != nil {
			return fmt.Errorf("failed to load podcast: %w", err)
		}
		if podcast == nil {
			return fmt.Errorf("podcast %q not found", podcastID)
		}
	}

	result, err := a.orchestrator.Generate(ctx, *podcast, opts)
	fmt.Printf("Generation log: %s\n", result.Log.ID)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	fmt.Printf("Episode: %s\n", result.Episode.ID)
	fmt.Printf("Title:   %s\n", result.Episode.Title)
	if result.Episode.AudioURL != "" {
		fmt.Printf("Audio:   %s\n", result.Episode.AudioURL)
	}
	return nil
}
