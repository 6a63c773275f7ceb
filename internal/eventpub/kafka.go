// Package eventpub ships manager lifecycle events to external sinks.
package eventpub

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	kafka "github.com/segmentio/kafka-go"

	"modelswap/internal/manager"
)

const (
	DefaultBuffer       = 256
	DefaultWriteTimeout = 5 * time.Second
)

// Record is the JSON value written for each event.
type Record struct {
	Name       string         `json:"name"`
	Replica    string         `json:"replica,omitempty"`
	ArtifactID string         `json:"artifact_id,omitempty"`
	Version    int64          `json:"version,omitempty"`
	TimeUnixMs int64          `json:"ts_ms"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// KafkaConfig configures a KafkaPublisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	// Replica identifies the publisher; it is used as the message key so
	// one replica's events stay ordered within a partition.
	Replica      string
	Buffer       int
	WriteTimeout time.Duration
	Logger       *zerolog.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements manager.EventPublisher. Publish never blocks:
// events are queued and written by a background goroutine, and dropped
// when the queue is full.
type KafkaPublisher struct {
	w       messageWriter
	replica string
	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	ch     chan manager.Event
	done   chan struct{}
}

var _ manager.EventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("eventpub: no kafka brokers configured")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("eventpub: empty kafka topic")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(w, cfg), nil
}

func newKafkaPublisher(w messageWriter, cfg KafkaConfig) *KafkaPublisher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	p := &KafkaPublisher{
		w:       w,
		replica: cfg.Replica,
		timeout: cfg.WriteTimeout,
		log:     zerolog.Nop(),
		now:     time.Now,
		ch:      make(chan manager.Event, cfg.Buffer),
		done:    make(chan struct{}),
	}
	if cfg.Logger != nil {
		p.log = cfg.Logger.With().Str("component", "eventpub").Logger()
	}
	go p.run()
	return p
}

func (p *KafkaPublisher) Publish(e manager.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.ch <- e:
	default:
		droppedTotal.Inc()
		p.log.Warn().Str("event", e.Name).Msg("event queue full, dropping")
	}
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	for e := range p.ch {
		msg, err := p.encode(e)
		if err != nil {
			p.log.Error().Err(err).Str("event", e.Name).Msg("encode event failed")
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err = p.w.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			writeFailuresTotal.Inc()
			p.log.Error().Err(err).Str("event", e.Name).Msg("write event failed")
			continue
		}
		publishedTotal.Inc()
	}
}

func (p *KafkaPublisher) encode(e manager.Event) (kafka.Message, error) {
	now := p.now()
	b, err := json.Marshal(Record{
		Name:       e.Name,
		Replica:    p.replica,
		ArtifactID: e.ArtifactID,
		Version:    e.Version,
		TimeUnixMs: now.UnixMilli(),
		Fields:     e.Fields,
	})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Key: []byte(p.replica), Value: b, Time: now}, nil
}

// Close drains queued events and closes the writer. Publish after Close is a no-op.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return nil
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()
	<-p.done
	return p.w.Close()
}
