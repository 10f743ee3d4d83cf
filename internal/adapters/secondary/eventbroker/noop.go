package eventbroker

import (
	"context"

	"github.com/arhipvp/hw05-final/internal/core/domain"
	"github.com/arhipvp/hw05-final/internal/core/ports"
)

// NoopPublisher est utilisé quand NATS_URL est vide.
type NoopPublisher struct{}

var _ ports.EventPublisher = NoopPublisher{}

func (NoopPublisher) PublishPostCreated(context.Context, *domain.Post) error       { return nil }
func (NoopPublisher) PublishPostUpdated(context.Context, *domain.Post) error       { return nil }
func (NoopPublisher) PublishCommentCreated(context.Context, *domain.Comment) error { return nil }
func (NoopPublisher) PublishFollowCreated(context.Context, *domain.Follow) error   { return nil }
func (NoopPublisher) PublishFollowDeleted(context.Context, int64, int64) error     { return nil }
