package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"parcel-constraints-be/internal/config"
	"parcel-constraints-be/pkg/events"
	pktNats "parcel-constraints-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var eventsType string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail analysis and ingestion events",
	Long: `Subscribes to the zoning event stream and prints new events until
interrupted. Use --type to follow a single event type.`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().StringVarP(&eventsType, "type", "t", "", "event type, e.g. analysis.completed")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	sub, err := pktNats.NewSubscriber(config.Load().App.NatsURL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer sub.Close()

	subject := pktNats.SubjectPrefix + ".>"
	if eventsType != "" {
		subject = pktNats.Subject(eventsType)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = sub.Subscribe(ctx, subject, "", func(_ context.Context, event events.Event) error {
		return printEvent(cmd, event)
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

func printEvent(cmd *cobra.Command, event events.Event) error {
	if jsonOutput {
		return printJSON(cmd, map[string]interface{}{
			"type":        event.EventType(),
			"occurred_at": event.Timestamp(),
			"data":        event.Payload(),
		})
	}
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return err
	}
	color.New(color.FgCyan).Printf("%s ", event.Timestamp().Format("15:04:05"))
	color.New(color.Bold).Printf("%s ", event.EventType())
	fmt.Println(string(payload))
	return nil
}
