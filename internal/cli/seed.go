package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gregoryhugaerts/mini-siem/internal/seeder"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate and ingest demo events",
	Example: `  siemctl seed --source SOURCE_ID --count 500 --kind alert --spread 24h
  siemctl seed --source SOURCE_ID --kind dns --seed 42`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceID, _ := cmd.Flags().GetString("source")
		kind, _ := cmd.Flags().GetString("kind")
		count, _ := cmd.Flags().GetInt("count")
		spread, _ := cmd.Flags().GetDuration("spread")
		seed, _ := cmd.Flags().GetInt64("seed")
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		if sourceID == "" {
			return fmt.Errorf("--source is required")
		}
		if count < 1 {
			return fmt.Errorf("--count must be positive")
		}
		if batchSize < 1 {
			return fmt.Errorf("--batch-size must be positive")
		}

		gen, err := seeder.New(sourceID, kind, seed)
		if err != nil {
			return err
		}

		events := gen.Generate(count, spread)
		api := apiClient()

		sent, rejected := 0, 0
		for start := 0; start < len(events); start += batchSize {
			end := start + batchSize
			if end > len(events) {
				end = len(events)
			}
			result, err := api.SendEvents(events[start:end])
			if err != nil {
				return fmt.Errorf("send batch at offset %d: %w", start, err)
			}
			sent += result.Accepted
			rejected += result.Rejected
		}

		fmt.Printf("Seeded %d %s events (%d rejected)\n", sent, kind, rejected)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("source", "", "source ID to seed events for")
	seedCmd.Flags().String("kind", "alert", "event kind: alert, flow, dns")
	seedCmd.Flags().Int("count", 100, "number of events")
	seedCmd.Flags().Duration("spread", time.Hour, "spread timestamps over this window")
	seedCmd.Flags().Int64("seed", 0, "random seed (0 uses the current time)")
	seedCmd.Flags().Int("batch-size", 100, "events per request")
}
