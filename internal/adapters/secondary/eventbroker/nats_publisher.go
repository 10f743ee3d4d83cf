package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/arhipvp/hw05-final/internal/core/domain"
	"github.com/arhipvp/hw05-final/internal/core/ports"
)

const (
	SubjectPostCreated    = "post.created"
	SubjectPostUpdated    = "post.updated"
	SubjectCommentCreated = "comment.created"
	SubjectFollowCreated  = "follow.created"
	SubjectFollowDeleted  = "follow.deleted"
)

// MsgPublisher est satisfait par *nats.Conn.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

type NatsPublisher struct {
	nc MsgPublisher
}

func NewNatsPublisher(nc MsgPublisher) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

var _ ports.EventPublisher = (*NatsPublisher)(nil)

// Structures des events (contrat implicite avec les consommateurs)
type PostEvent struct {
	ID       int64     `json:"id"`
	AuthorID int64     `json:"author_id"`
	GroupID  *int64    `json:"group_id,omitempty"`
	Excerpt  string    `json:"excerpt"`
	HasImage bool      `json:"has_image"`
	PubDate  time.Time `json:"pub_date"`
}

type CommentEvent struct {
	ID       int64     `json:"id"`
	PostID   int64     `json:"post_id"`
	AuthorID int64     `json:"author_id"`
	Created  time.Time `json:"created"`
}

type FollowEvent struct {
	UserID   int64     `json:"user_id"`
	AuthorID int64     `json:"author_id"`
	At       time.Time `json:"at"`
}

func newPostEvent(post *domain.Post) PostEvent {
	return PostEvent{
		ID:       post.ID,
		AuthorID: post.AuthorID,
		GroupID:  post.GroupID,
		Excerpt:  post.Excerpt(),
		HasImage: post.Image != "",
		PubDate:  post.PubDate,
	}
}

func (p *NatsPublisher) PublishPostCreated(ctx context.Context, post *domain.Post) error {
	return p.publish(ctx, SubjectPostCreated, newPostEvent(post))
}

func (p *NatsPublisher) PublishPostUpdated(ctx context.Context, post *domain.Post) error {
	return p.publish(ctx, SubjectPostUpdated, newPostEvent(post))
}

func (p *NatsPublisher) PublishCommentCreated(ctx context.Context, c *domain.Comment) error {
	return p.publish(ctx, SubjectCommentCreated, CommentEvent{
		ID:       c.ID,
		PostID:   c.PostID,
		AuthorID: c.AuthorID,
		Created:  c.Created,
	})
}

func (p *NatsPublisher) PublishFollowCreated(ctx context.Context, f *domain.Follow) error {
	return p.publish(ctx, SubjectFollowCreated, FollowEvent{
		UserID:   f.UserID,
		AuthorID: f.AuthorID,
		At:       f.CreatedAt,
	})
}

func (p *NatsPublisher) PublishFollowDeleted(ctx context.Context, userID, authorID int64) error {
	return p.publish(ctx, SubjectFollowDeleted, FollowEvent{
		UserID:   userID,
		AuthorID: authorID,
		At:       time.Now().UTC(),
	})
}

func (p *NatsPublisher) publish(ctx context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	// 👇 Le trace ID de la requête HTTP suit l'event dans les headers NATS
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(msg.Header))

	slog.Debug("📢 Publishing event", "subject", subject)
	return p.nc.PublishMsg(msg)
}

// headerCarrier écrit les clés telles quelles : nats.Header.Get ne canonicalise
// pas, et les consommateurs W3C cherchent "traceparent" en minuscules.
type headerCarrier nats.Header

var _ propagation.TextMapCarrier = headerCarrier(nil)

func (c headerCarrier) Get(key string) string {
	if v := c[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	c[key] = []string{value}
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
