package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/mapme/internal/core/domain"
)

// Subjects and streams used by the api and refresher.
const (
	RefreshStream  = "MAPME_REFRESH"
	StatsStream    = "MAPME_STATS"
	RefreshSubject = "mapme.refresh.athlete"
	StatsPrefix    = "mapme.stats."
)

// StatsSubject is the subject stats updates for a map are published on.
func StatsSubject(mapCode string) string {
	return StatsPrefix + mapCode
}

// Publisher implements ports.EventPublisher and ports.RefreshScheduler using
// NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := ensureStreams(js); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

func ensureStreams(js nats.JetStreamContext) error {
	streams := []nats.StreamConfig{
		{
			Name:       RefreshStream,
			Subjects:   []string{"mapme.refresh.>"},
			Retention:  nats.WorkQueuePolicy,
			MaxAge:     1 * time.Hour,
			Storage:    nats.FileStorage,
			Duplicates: 1 * time.Minute,
		},
		{
			Name:      StatsStream,
			Subjects:  []string{StatsPrefix + ">"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// PublishRefreshRequest queues a stats refresh. Requests with the same ID
// inside the duplicate window are dropped by the server.
func (p *Publisher) PublishRefreshRequest(ctx context.Context, req *domain.RefreshRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(RefreshSubject, data, nats.MsgId(req.ID), nats.Context(ctx))
	return err
}

// PublishStatsUpdated fans an update out to the subject of every map the
// athlete has joined. Each message carries only its own map.
func (p *Publisher) PublishStatsUpdated(ctx context.Context, update *domain.StatsUpdate) error {
	for _, code := range update.Maps {
		u := *update
		u.Maps = []string{code}
		data, err := json.Marshal(&u)
		if err != nil {
			return err
		}
		if _, err := p.js.Publish(StatsSubject(code), data, nats.Context(ctx)); err != nil {
			return fmt.Errorf("publish stats for map %s: %w", code, err)
		}
	}
	return nil
}

// ScheduleRefresh implements ports.RefreshScheduler. Requests for the same
// athlete within a minute share an ID and are deduplicated.
func (p *Publisher) ScheduleRefresh(ctx context.Context, athleteID int64) error {
	now := time.Now().UTC()
	id := uuid.NewSHA1(uuid.NameSpaceOID,
		[]byte(fmt.Sprintf("%d/%d", athleteID, now.Truncate(time.Minute).Unix()))).String()
	return p.PublishRefreshRequest(ctx, &domain.RefreshRequest{
		ID:          id,
		AthleteID:   athleteID,
		RequestedAt: now,
	})
}

// IsConnected reports the connection state for readiness checks.
func (p *Publisher) IsConnected() bool {
	return p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("mapme"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
