package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/ignacioelizeche/controlid/config"
	"github.com/ignacioelizeche/controlid/pkg/client/natsio"
	"github.com/ignacioelizeche/controlid/pkg/notification"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type WatchHandler struct {
	c *config.Config
}

func newWatchHandler(c *config.Config) *WatchHandler {
	return &WatchHandler{c: c}
}

// WatchSubject returns the NATS subject to watch for a category, or for all
// notifications when category is empty.
func WatchSubject(category string) (string, error) {
	if category == "" {
		return notification.SubjectPrefix + ">", nil
	}
	c, ok := notification.Normalize(category)
	if !ok {
		return "", fmt.Errorf("unknown notification category %q", category)
	}
	return notification.Subject(c), nil
}

// Watch prints the notifications published on the bus until interrupted.
func (h *WatchHandler) Watch(cmd *cobra.Command, args []string) {
	useConsoleOutput(false)

	if h.c.NATSServerURL == "" {
		log.Error("NATS_URL is not set")
		os.Exit(2)
	}

	category, _ := cmd.Flags().GetString("category")
	subject, err := WatchSubject(category)
	if err != nil {
		log.Error(err)
		os.Exit(2)
	}

	bus, err := natsio.New(&natsio.Config{URL: h.c.NATSServerURL, Name: "controlid-watch"})
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
	defer bus.Close()

	if err := bus.Subscribe(subject, func(subject string, data []byte) {
		fmt.Printf("subject: %s, message: %s\n", subject, string(data))
	}); err != nil {
		log.Error(err)
		os.Exit(1)
	}
	log.Infof("Watching %s", subject)

	quitCh := make(chan os.Signal, 1)
	signal.Notify(quitCh, os.Interrupt)
	<-quitCh
}
