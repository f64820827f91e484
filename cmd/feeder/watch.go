package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/feeder/internal/events"
	"github.com/alfredjeanlab/feeder/internal/ui"
)

var watchTopics = []string{
	events.TopicRunStarted,
	events.TopicIncidentCreated,
	events.TopicIncidentFailed,
	events.TopicAttachmentUploaded,
	events.TopicInvestigationOpened,
	events.TopicRunFinished,
}

type watchedEvent struct {
	topic string
	data  []byte
}

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Follow submissions from any feeder sharing the event bus",
	GroupID: "submit",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.NATSURL == "" {
			return errors.New("no event bus configured (set FEEDER_NATS_URL)")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		sub, err := events.NewNATSSubscriber(cfg.NATSURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				logger.Info("nats reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		merged := make(chan watchedEvent)
		for _, topic := range watchTopics {
			ch, cancel, err := sub.Subscribe(topic)
			if err != nil {
				return fmt.Errorf("subscribing to %s: %w", topic, err)
			}
			defer cancel()
			go func(topic string, ch <-chan []byte) {
				for data := range ch {
					select {
					case merged <- watchedEvent{topic: topic, data: data}:
					case <-ctx.Done():
						return
					}
				}
			}(topic, ch)
		}

		fmt.Fprintln(os.Stderr, ui.RenderMuted("watching "+events.TopicAll+" (Ctrl-C to stop)"))
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-merged:
				if jsonOutput {
					fmt.Printf("{\"topic\":%q,\"event\":%s}\n", ev.topic, ev.data)
					continue
				}
				fmt.Println(formatEvent(ev.topic, ev.data, time.Now()))
			}
		}
	},
}

// formatEvent renders one bus event as a single line.
func formatEvent(topic string, data []byte, at time.Time) string {
	stamp := ui.RenderMuted(at.Format("15:04:05"))
	switch topic {
	case events.TopicIncidentCreated:
		var e events.IncidentCreated
		if json.Unmarshal(data, &e) == nil {
			return fmt.Sprintf("%s %s %s on %s: incident %s", stamp, ui.RenderOK("created"), e.Config, e.Server, e.IncidentID)
		}
	case events.TopicIncidentFailed:
		var e events.IncidentFailed
		if json.Unmarshal(data, &e) == nil {
			return fmt.Sprintf("%s %s %s on %s: %s", stamp, ui.RenderFail("failed"), e.Config, e.Server, e.Error)
		}
	case events.TopicAttachmentUploaded:
		var e events.AttachmentUploaded
		if json.Unmarshal(data, &e) == nil {
			return fmt.Sprintf("%s uploaded %s to %s/%s", stamp, e.AttachmentID, e.IncidentID, e.Field)
		}
	case events.TopicInvestigationOpened:
		var e events.InvestigationOpened
		if json.Unmarshal(data, &e) == nil {
			return fmt.Sprintf("%s investigation opened for %s on %s", stamp, e.IncidentID, e.Server)
		}
	case events.TopicRunStarted:
		var e events.RunStarted
		if json.Unmarshal(data, &e) == nil {
			return fmt.Sprintf("%s %s run %s: %d configs x %d servers", stamp, ui.RenderAccent("started"), e.RunID, len(e.Configs), len(e.Servers))
		}
	case events.TopicRunFinished:
		var e events.RunFinished
		if json.Unmarshal(data, &e) == nil && e.Run != nil {
			return fmt.Sprintf("%s %s run %s: %d failed of %d", stamp, ui.RenderAccent("finished"), e.Run.ID, e.Run.Failed(), len(e.Run.Results))
		}
	}
	return fmt.Sprintf("%s %s %s", stamp, topic, data)
}
