package deal

import (
	"context"
	"strings"

	"github.com/p2pmart/dealroom/internal/chat"
	"github.com/p2pmart/dealroom/internal/metrics"
	"github.com/p2pmart/dealroom/internal/traces"
)

// HandleUpdate is the single entry point for inbound chat events.
// It never returns an error: a malformed or irrelevant update is logged
// and dropped, because the update loop must not stall on bad input.
func (s *Service) HandleUpdate(ctx context.Context, u chat.Update) {
	switch {
	case u.CallbackQuery != nil:
		metrics.UpdatesTotal.WithLabelValues("callback").Inc()
		ctx, span := traces.StartSpan(ctx, "deal.callback")
		defer span.End()
		s.handleCallback(ctx, u.CallbackQuery)

	case u.Message != nil && len(u.Message.NewChatMembers) > 0:
		metrics.UpdatesTotal.WithLabelValues("join").Inc()
		ctx, span := traces.StartSpan(ctx, "deal.join")
		defer span.End()
		s.handleJoin(ctx, u.Message)

	case u.Message != nil && strings.HasPrefix(u.Message.Text, "/"):
		metrics.UpdatesTotal.WithLabelValues("command").Inc()
		ctx, span := traces.StartSpan(ctx, "deal.command")
		defer span.End()
		s.handleCommand(ctx, u.Message)

	case u.Message != nil && u.Message.Text != "":
		metrics.UpdatesTotal.WithLabelValues("text").Inc()
		ctx, span := traces.StartSpan(ctx, "deal.text")
		defer span.End()
		s.handleText(ctx, u.Message)

	default:
		metrics.UpdatesTotal.WithLabelValues("ignored").Inc()
	}
}

// Run consumes updates from the source until the context is cancelled.
// The offset cursor advances past every update we saw, including ones
// we dropped, so a bad update is never redelivered forever.
func (s *Service) Run(ctx context.Context, source chat.UpdateSource) error {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := source.Updates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("update poll failed", "error", err)
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			s.HandleUpdate(ctx, u)
		}
	}
}
