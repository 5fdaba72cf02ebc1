package registry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/plastic-io/graph-server/internal/transport"
	logpkg "github.com/plastic-io/graph-server/pkg/log"
)

// dispatch spreads the posts of one logical operation over time: post i is
// scheduled after i backoff increments, smoothing burst load on the
// transport during a fan-out.
type dispatch struct {
	svc   *Service
	delay time.Duration
}

func (s *Service) newDispatch() *dispatch {
	return &dispatch{svc: s}
}

func (s *Service) increment() time.Duration {
	ms := s.policy.IncrementMs
	if ms <= 0 {
		ms = 35
	}
	return time.Duration(ms) * time.Millisecond
}

// post serializes message and schedules its delivery. Serialization failures
// are logged and dropped; everything after this point is asynchronous.
func (d *dispatch) post(ctx context.Context, ep transport.Endpoint, message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		d.svc.logger.Error("cannot serialize message",
			logpkg.Str("connection_id", ep.ConnectionID), logpkg.Err(err))
		return
	}
	initial := d.delay
	d.delay += d.svc.increment()
	go d.svc.deliver(ctx, ep, payload, initial)
}

// deliver pushes one payload with the linear backoff policy: an initial
// spread delay, then one additional increment per throttled response,
// retried until success, a permanent failure, the configured attempt cap,
// or the request context ends.
func (s *Service) deliver(ctx context.Context, ep transport.Endpoint, payload []byte, initial time.Duration) {
	backoff := initial
	attempts := 0
	for {
		if backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.countDelivery("abandoned")
				return
			case <-timer.C:
			}
		}
		err := s.tr.Push(ctx, ep, payload)
		switch {
		case err == nil:
			s.countDelivery("ok")
			return
		case errors.Is(err, transport.ErrGone):
			s.logger.Error("client disconnected unexpectedly, cleaning up",
				logpkg.Str("domain", ep.DomainName),
				logpkg.Str("connection_id", ep.ConnectionID))
			s.countDelivery("gone")
			// Cleanup runs detached so the enclosing operation is not held
			// up and a cancelled request still removes the dead connection.
			go func() {
				_ = s.Disconnect(context.Background(), ep.ConnectionID, ep.DomainName)
			}()
			return
		case errors.Is(err, transport.ErrThrottled):
			attempts++
			if s.policy.MaxAttempts > 0 && attempts >= s.policy.MaxAttempts {
				s.logger.Error("delivery dropped after throttle retries",
					logpkg.Str("connection_id", ep.ConnectionID),
					logpkg.Int("attempts", attempts))
				s.countDelivery("dropped")
				return
			}
			s.logger.Warn("connection throttled, backing off",
				logpkg.Str("connection_id", ep.ConnectionID),
				logpkg.Int("attempts", attempts))
			backoff += s.increment()
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			s.countDelivery("abandoned")
			return
		default:
			s.logger.Error("error transmitting to a connection",
				logpkg.Str("connection_id", ep.ConnectionID), logpkg.Err(err))
			s.countDelivery("error")
			return
		}
	}
}

func (s *Service) countDelivery(result string) {
	if s.metrics != nil {
		s.metrics.Deliveries.WithLabelValues(result).Inc()
	}
}
