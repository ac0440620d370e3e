package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rekindle/internal/logger"
	"rekindle/simulator"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	config := simulator.SimConfig{}
	var logLevel string

	cmd := &cobra.Command{
		Use:   "simulator",
		Short: "Drive synthetic community traffic against a running ReKindle server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Init(logLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("Simulation configuration",
				"engineURL", config.EngineURL,
				"users", config.NumUsers,
				"duration", config.SimulationTime,
				"postsPerUserHour", config.PostFrequency,
				"repliesPerUserHour", config.ReplyFrequency,
				"likesPerUserHour", config.LikeFrequency,
				"flagsPerUserHour", config.FlagFrequency,
				"zipfS", config.ZipfS,
			)

			sim := simulator.NewEnhancedSimulator(config)
			if err := sim.Run(ctx); err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}
			printMetrics(cmd, sim.GetMetrics())
			return nil
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	f := cmd.Flags()
	f.StringVar(&config.EngineURL, "url", "http://localhost:8080", "server base URL")
	f.IntVar(&config.NumUsers, "users", 10, "number of simulated accounts")
	f.DurationVar(&config.SimulationTime, "duration", 2*time.Minute, "how long to generate traffic")
	f.Float64Var(&config.PostFrequency, "posts", 60, "posts per user per hour")
	f.Float64Var(&config.ReplyFrequency, "replies", 120, "replies per user per hour")
	f.Float64Var(&config.LikeFrequency, "likes", 240, "likes per user per hour")
	f.Float64Var(&config.FlagFrequency, "flags", 6, "flags per user per hour")
	f.Float64Var(&config.ZipfS, "zipf", 1.07, "Zipf skew across subcommunities (> 1)")
	f.IntVar(&config.Workers, "workers", 5, "concurrent signup workers")
	f.StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}

func printMetrics(cmd *cobra.Command, m simulator.SimulationMetrics) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Simulation completed. Final metrics:")
	fmt.Fprintf(out, "- Users: %d\n", m.TotalUsers)
	fmt.Fprintf(out, "- Requests: %d (%d failed)\n", m.TotalRequests, m.FailedRequests)
	fmt.Fprintf(out, "- Posts: %d\n", m.TotalPosts)
	fmt.Fprintf(out, "- Replies: %d\n", m.TotalReplies)
	fmt.Fprintf(out, "- Likes: %d\n", m.TotalLikes)
	fmt.Fprintf(out, "- Flags: %d\n", m.TotalFlags)
	fmt.Fprintf(out, "- Average latency: %v\n", m.AverageLatency)
	for sub, n := range m.PostsBySubgroup {
		fmt.Fprintf(out, "  %s: %d posts\n", sub, n)
	}
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
