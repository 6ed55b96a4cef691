// Package notifier delivers signals to chat channels.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"AlertWatch/internal/model"
)

// Notifier delivers one signal. Failures are reported, never retried here.
type Notifier interface {
	Send(ctx context.Context, sig *model.Signal) error
	Name() string
}

// LogNotifier writes signals to the log; used when no chat channel is configured.
type LogNotifier struct {
	Formatter Formatter
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(f Formatter) *LogNotifier {
	f.Style = StylePlain
	return &LogNotifier{Formatter: f}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(_ context.Context, sig *model.Signal) error {
	log.WithField("ticker", sig.Ticker).Info(n.Formatter.Format(sig))
	return nil
}

// Multi delivers to every notifier; the send fails if any channel fails.
type Multi []Notifier

func (m Multi) Name() string {
	names := make([]string, 0, len(m))
	for _, n := range m {
		names = append(names, n.Name())
	}
	return strings.Join(names, "+")
}

func (m Multi) Send(ctx context.Context, sig *model.Signal) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, sig); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
