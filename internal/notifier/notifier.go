// Package notifier delivers screening reports over Telegram and email.
package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"PairSentinel/internal/metrics"
)

// Attachment is a file delivered alongside a report.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Report is a rendered run summary ready for delivery.
type Report struct {
	Subject    string
	Text       string // Telegram HTML
	PlainText  string
	Attachment *Attachment
}

// Notifier delivers a report over one channel.
type Notifier interface {
	Name() string
	SendReport(ctx context.Context, r Report) error
}

// Multi fans a report out to every channel. One failing channel does not stop the others.
type Multi struct {
	Notifiers []Notifier
	Metrics   *metrics.Registry
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) SendReport(ctx context.Context, r Report) error {
	var errs []error
	for _, n := range m.Notifiers {
		err := n.SendReport(ctx, r)
		m.Metrics.Notified(n.Name(), err)
		if err != nil {
			log.Error().Err(err).Str("channel", n.Name()).Msg("report delivery failed")
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		log.Info().Str("channel", n.Name()).Msg("report delivered")
	}
	return errors.Join(errs...)
}
