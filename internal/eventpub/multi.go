package eventpub

import (
	"github.com/rs/zerolog"

	"modelswap/internal/manager"
)

// Multi fans one event out to several publishers.
type Multi []manager.EventPublisher

func (m Multi) Publish(e manager.Event) {
	for _, p := range m {
		p.Publish(e)
	}
}

// LogPublisher writes events to a zerolog logger at debug level.
type LogPublisher struct {
	Logger zerolog.Logger
}

func (l LogPublisher) Publish(e manager.Event) {
	ev := l.Logger.Debug().Str("event", e.Name).Str("artifact", e.ArtifactID)
	if e.Version > 0 {
		ev = ev.Int64("version", e.Version)
	}
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("manager event")
}
