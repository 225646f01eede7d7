package ports

import "context"

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishAuthenticated(ctx context.Context, address string, sessionID string, chainID int64) error
	PublishLinked(ctx context.Context, address string, sessionID string, provider string, externalID string) error
	PublishLogout(ctx context.Context, address string, sessionID string) error
}
