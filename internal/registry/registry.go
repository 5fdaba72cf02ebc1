package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/plastic-io/graph-server/internal/blob"
	"github.com/plastic-io/graph-server/internal/config"
	"github.com/plastic-io/graph-server/internal/keys"
	"github.com/plastic-io/graph-server/internal/metrics"
	"github.com/plastic-io/graph-server/internal/transport"
	logpkg "github.com/plastic-io/graph-server/pkg/log"
)

var (
	// ErrMissingChannel rejects subscription requests without a channel id.
	ErrMissingChannel = errors.New("registry: missing channelId")
	// ErrMissingConnection rejects requests without a connection id.
	ErrMissingConnection = errors.New("registry: missing connectionId")
)

// ConnectionInfo is the record stored for a live client session.
type ConnectionInfo struct {
	ConnectionID string          `json:"connectionId"`
	DomainName   string          `json:"domainName"`
	// Context carries the raw handshake context for diagnostics.
	Context json.RawMessage `json:"context,omitempty"`
}

// subscriptionRecord is stored under both the forward and reverse keys.
type subscriptionRecord struct {
	ChannelID    string `json:"channelId"`
	ConnectionID string `json:"connectionId"`
	DomainName   string `json:"domainName"`
	Filter       string `json:"filter,omitempty"`
}

// Service owns connection/subscription state and delivers messages through
// the transport with the linear-backoff policy.
type Service struct {
	store   blob.Store
	tr      transport.Transport
	policy  config.DeliveryPolicy
	logger  logpkg.Logger
	metrics *metrics.Metrics
}

// New creates a registry service.
func New(store blob.Store, tr transport.Transport, policy config.DeliveryPolicy, logger logpkg.Logger) *Service {
	return &Service{store: store, tr: tr, policy: policy, logger: logger}
}

// WithMetrics attaches prometheus collectors.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Connect stores a connection record keyed by (connectionId, domainName).
// Reconnecting with the same id overwrites the existing record.
func (s *Service) Connect(ctx context.Context, info ConnectionInfo) error {
	if info.ConnectionID == "" {
		return ErrMissingConnection
	}
	body, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	key := keys.Connection(info.ConnectionID, info.DomainName)
	if err := s.store.Set(ctx, key, body, blob.Metadata{ID: info.ConnectionID, Type: "connection"}); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if s.metrics != nil {
		s.metrics.Connections.Inc()
	}
	s.logger.Debug("connection registered",
		logpkg.Str("connection_id", info.ConnectionID),
		logpkg.Str("domain", info.DomainName))
	return nil
}

// Disconnect removes the connection record and cascades to every
// subscription pair referencing it. Cleanup is best-effort: individual
// removal failures are logged and the remaining cleanup continues.
func (s *Service) Disconnect(ctx context.Context, connectionID, domainName string) error {
	if connectionID == "" {
		return ErrMissingConnection
	}
	if err := s.store.Remove(ctx, keys.Connection(connectionID, domainName)); err != nil {
		s.logger.Error("cannot remove connection record",
			logpkg.Str("connection_id", connectionID), logpkg.Err(err))
	}
	refs, err := s.ListSubscriptions(ctx, connectionID)
	if err != nil {
		s.logger.Error("cannot list subscriptions on disconnect",
			logpkg.Str("connection_id", connectionID), logpkg.Err(err))
		return nil
	}
	for _, ref := range refs {
		if err := s.store.Remove(ctx, keys.Subscription(ref.ChannelID, ref.ConnectionID, ref.DomainName)); err != nil {
			s.logger.Error("disconnect: cannot remove subscription record",
				logpkg.Str("channel_id", ref.ChannelID), logpkg.Err(err))
		}
		if err := s.store.Remove(ctx, keys.SubscriptionReverse(ref.ConnectionID, ref.ChannelID, ref.DomainName)); err != nil {
			s.logger.Error("disconnect: cannot remove reverse subscription record",
				logpkg.Str("channel_id", ref.ChannelID), logpkg.Err(err))
		}
	}
	if s.metrics != nil {
		s.metrics.Connections.Dec()
	}
	return nil
}

// Subscribe writes both subscription records and pushes a confirmation to
// the subscriber. An optional filter expression limits which broadcast
// messages the subscription receives; it must compile or the request is
// rejected before any state change.
func (s *Service) Subscribe(ctx context.Context, connectionID, domainName, channelID, filter string) error {
	if channelID == "" {
		return ErrMissingChannel
	}
	if connectionID == "" {
		return ErrMissingConnection
	}
	if _, err := newMessageFilter(filter); err != nil {
		return fmt.Errorf("subscribe: invalid filter: %w", err)
	}
	rec := subscriptionRecord{
		ChannelID:    channelID,
		ConnectionID: connectionID,
		DomainName:   domainName,
		Filter:       filter,
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	meta := blob.Metadata{ID: channelID, Type: "subscription"}
	if err := s.store.Set(ctx, keys.SubscriptionReverse(connectionID, channelID, domainName), body, meta); err != nil {
		return fmt.Errorf("subscribe: reverse record: %w", err)
	}
	if err := s.store.Set(ctx, keys.Subscription(channelID, connectionID, domainName), body, meta); err != nil {
		return fmt.Errorf("subscribe: forward record: %w", err)
	}
	s.PostToClient(ctx, domainName, connectionID, map[string]any{"subscribed": channelID})
	return nil
}

// Unsubscribe removes both subscription records and pushes a confirmation.
func (s *Service) Unsubscribe(ctx context.Context, connectionID, domainName, channelID string) error {
	if channelID == "" {
		return ErrMissingChannel
	}
	if connectionID == "" {
		return ErrMissingConnection
	}
	if err := s.store.Remove(ctx, keys.Subscription(channelID, connectionID, domainName)); err != nil {
		s.logger.Error("unsubscribe: cannot remove subscription record", logpkg.Err(err))
	}
	if err := s.store.Remove(ctx, keys.SubscriptionReverse(connectionID, channelID, domainName)); err != nil {
		s.logger.Error("unsubscribe: cannot remove reverse subscription record", logpkg.Err(err))
	}
	s.PostToClient(ctx, domainName, connectionID, map[string]any{"unsubscribed": channelID})
	return nil
}

// ListSubscribers returns every subscription of a channel.
func (s *Service) ListSubscribers(ctx context.Context, channelID string) ([]keys.SubscriptionRef, error) {
	if channelID == "" {
		return nil, ErrMissingChannel
	}
	listed, err := s.store.List(ctx, keys.SubscribersPrefix(channelID))
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	refs := make([]keys.SubscriptionRef, 0, len(listed))
	for _, k := range listed {
		if ref, ok := keys.ParseSubscription(k); ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// ListSubscriptions returns every channel membership of a connection.
func (s *Service) ListSubscriptions(ctx context.Context, connectionID string) ([]keys.SubscriptionRef, error) {
	if connectionID == "" {
		return nil, ErrMissingConnection
	}
	listed, err := s.store.List(ctx, keys.SubscriptionsPrefix(connectionID))
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	refs := make([]keys.SubscriptionRef, 0, len(listed))
	for _, k := range listed {
		if ref, ok := keys.ParseSubscriptionReverse(k); ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// PostToClient serializes message and delivers it to one connection with the
// backoff policy. Delivery is best-effort; failures other than "gone" are
// logged and do not surface to the caller.
func (s *Service) PostToClient(ctx context.Context, domainName, connectionID string, message any) {
	d := s.newDispatch()
	d.post(ctx, transport.Endpoint{DomainName: domainName, ConnectionID: connectionID}, message)
}

// Broadcast delivers message to every current subscriber of a channel.
// Deliveries are independent; one subscriber's failure never blocks the rest.
func (s *Service) Broadcast(ctx context.Context, channelID string, message any) error {
	refs, err := s.ListSubscribers(ctx, channelID)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.Broadcasts.Inc()
	}
	d := s.newDispatch()
	for _, ref := range refs {
		if !s.filterAllows(ctx, ref, message) {
			continue
		}
		d.post(ctx, transport.Endpoint{DomainName: ref.DomainName, ConnectionID: ref.ConnectionID}, message)
	}
	return nil
}

// SendToChannel wraps value in a channel envelope and broadcasts it.
func (s *Service) SendToChannel(ctx context.Context, channelID string, value any) error {
	if channelID == "" {
		return ErrMissingChannel
	}
	return s.Broadcast(ctx, channelID, map[string]any{
		"channelId": channelID,
		"response":  value,
	})
}

// SendToConnection wraps value in a direct-message envelope and posts it.
func (s *Service) SendToConnection(ctx context.Context, domainName, to, from string, value any) error {
	if to == "" {
		return ErrMissingConnection
	}
	s.PostToClient(ctx, domainName, to, map[string]any{
		"to":       to,
		"from":     from,
		"response": value,
	})
	return nil
}

// SendToAll delivers value to every registered connection, no channel filter.
func (s *Service) SendToAll(ctx context.Context, from string, value any) error {
	listed, err := s.store.List(ctx, keys.ConnectionsPrefix)
	if err != nil {
		return fmt.Errorf("send to all: %w", err)
	}
	envelope := map[string]any{
		"broadcast": true,
		"from":      from,
		"response":  value,
	}
	d := s.newDispatch()
	for _, k := range listed {
		ref, ok := keys.ParseConnection(k)
		if !ok {
			continue
		}
		d.post(ctx, transport.Endpoint{DomainName: ref.DomainName, ConnectionID: ref.ConnectionID}, envelope)
	}
	return nil
}

// filterAllows loads the forward record for ref and evaluates its filter
// expression, if any, against the message. Malformed records or failing
// evaluations deliver rather than silently drop.
func (s *Service) filterAllows(ctx context.Context, ref keys.SubscriptionRef, message any) bool {
	body, err := s.store.Get(ctx, keys.Subscription(ref.ChannelID, ref.ConnectionID, ref.DomainName))
	if err != nil {
		return true
	}
	var rec subscriptionRecord
	if err := json.Unmarshal(body, &rec); err != nil || rec.Filter == "" {
		return true
	}
	f, err := newMessageFilter(rec.Filter)
	if err != nil {
		return true
	}
	return f.Eval(ref.ChannelID, message)
}
