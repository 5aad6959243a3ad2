package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gregoryhugaerts/mini-siem/internal/client"
	"github.com/gregoryhugaerts/mini-siem/internal/models"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Send and query events",
}

var eventsSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send events to the ingestion service",
	Example: `  siemctl events send --source SOURCE_ID --data '{"timestamp":"2026-01-15T10:00:00Z"}'
  siemctl events send --source SOURCE_ID --file events.ndjson`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceID, _ := cmd.Flags().GetString("source")
		data, _ := cmd.Flags().GetString("data")
		file, _ := cmd.Flags().GetString("file")

		if sourceID == "" {
			return fmt.Errorf("--source is required")
		}

		var events []models.RawEvent
		switch {
		case data != "":
			var payload map[string]interface{}
			if err := json.Unmarshal([]byte(data), &payload); err != nil {
				return fmt.Errorf("parse --data: %w", err)
			}
			events = append(events, models.RawEvent{
				Timestamp: time.Now().UTC(),
				Source:    sourceID,
				Data:      payload,
			})
		case file != "":
			var err error
			if events, err = readEventsFile(file, sourceID); err != nil {
				return err
			}
		default:
			return fmt.Errorf("either --data or --file is required")
		}

		result, err := apiClient().SendEvents(events)
		if err != nil {
			return fmt.Errorf("send events: %w", err)
		}

		fmt.Printf("Accepted %d of %d events\n", result.Accepted, len(events))
		for i, outcome := range result.Results {
			if !outcome.Accepted {
				fmt.Fprintf(os.Stderr, "  event %d rejected: %s\n", i, outcome.Error)
			}
		}
		if result.Rejected > 0 {
			return fmt.Errorf("%d events rejected", result.Rejected)
		}
		return nil
	},
}

var eventsQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query committed events",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := client.EventQuery{}
		q.SourceID, _ = cmd.Flags().GetString("source")
		q.SeqMin, _ = cmd.Flags().GetUint64("seq-min")
		q.SeqMax, _ = cmd.Flags().GetUint64("seq-max")
		q.Limit, _ = cmd.Flags().GetInt("limit")
		q.Page, _ = cmd.Flags().GetInt("page")

		events, err := apiClient().QueryEvents(q)
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
		return nil
	},
}

var eventsGetCmd = &cobra.Command{
	Use:   "get EVENT_ID",
	Short: "Fetch a single event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ev, err := apiClient().GetEvent(args[0])
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ev)
	},
}

// readEventsFile loads event payloads from a JSON array or, when the
// file does not start with '[', one payload per line (NDJSON).
func readEventsFile(path, sourceID string) ([]models.RawEvent, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}

	now := time.Now().UTC()
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var payloads []map[string]interface{}
		if err := json.Unmarshal(raw, &payloads); err != nil {
			return nil, fmt.Errorf("parse events file: %w", err)
		}
		events := make([]models.RawEvent, 0, len(payloads))
		for _, payload := range payloads {
			events = append(events, models.RawEvent{
				Timestamp: now,
				Source:    sourceID,
				Data:      payload,
			})
		}
		return events, nil
	}

	var events []models.RawEvent
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(text, &payload); err != nil {
			return nil, fmt.Errorf("parse line %d: %w", line, err)
		}
		events = append(events, models.RawEvent{
			Timestamp: now,
			Source:    sourceID,
			Data:      payload,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}
	return events, nil
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsSendCmd)
	eventsCmd.AddCommand(eventsQueryCmd)
	eventsCmd.AddCommand(eventsGetCmd)

	eventsSendCmd.Flags().String("source", "", "source ID")
	eventsSendCmd.Flags().String("data", "", "JSON event payload")
	eventsSendCmd.Flags().String("file", "", "events file: JSON array or NDJSON, one payload per line")

	eventsQueryCmd.Flags().String("source", "", "filter by source ID")
	eventsQueryCmd.Flags().Uint64("seq-min", 0, "minimum sequence number")
	eventsQueryCmd.Flags().Uint64("seq-max", 0, "maximum sequence number")
	eventsQueryCmd.Flags().Int("limit", 100, "page size")
	eventsQueryCmd.Flags().Int("page", 1, "page number")
}
