package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/walletauth/ports"
)

const (
	TopicAuthenticated = "walletauth.authenticated"
	TopicLinked        = "walletauth.linked"
	TopicLogout        = "walletauth.logout"
)

// AuthenticatedEvent is published when a session is promoted by a verified signature
type AuthenticatedEvent struct {
	Address   string    `json:"address"`
	SessionID string    `json:"session_id"`
	ChainID   int64     `json:"chain_id"`
	At        time.Time `json:"at"`
}

// LinkedEvent is published when an external identity is attached to a session
type LinkedEvent struct {
	Address    string    `json:"address"`
	SessionID  string    `json:"session_id"`
	Provider   string    `json:"provider"`
	ExternalID string    `json:"external_id"`
	At         time.Time `json:"at"`
}

// LogoutEvent represents a logout event
type LogoutEvent struct {
	Address   string    `json:"address"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	now       func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		now:       time.Now,
	}
}

// PublishAuthenticated publishes an authenticated event
func (p *WatermillPublisher) PublishAuthenticated(ctx context.Context, address string, sessionID string, chainID int64) error {
	return p.publish(ctx, TopicAuthenticated, AuthenticatedEvent{
		Address:   address,
		SessionID: sessionID,
		ChainID:   chainID,
		At:        p.now(),
	})
}

// PublishLinked publishes a linked event
func (p *WatermillPublisher) PublishLinked(ctx context.Context, address string, sessionID string, provider string, externalID string) error {
	return p.publish(ctx, TopicLinked, LinkedEvent{
		Address:    address,
		SessionID:  sessionID,
		Provider:   provider,
		ExternalID: externalID,
		At:         p.now(),
	})
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address string, sessionID string) error {
	return p.publish(ctx, TopicLogout, LogoutEvent{
		Address:   address,
		SessionID: sessionID,
		At:        p.now(),
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
