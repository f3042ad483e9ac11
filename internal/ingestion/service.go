package ingestion

import (
	"context"

	"github.com/aevon-lab/cruncher/internal/core/work"
	"github.com/gin-gonic/gin"
)

// Publisher puts a crunch request on the work queue.
type Publisher interface {
	Enqueue(ctx context.Context, scope work.Scope, body []byte, notify string) error
}

// Flusher force-flushes the pending batches of this worker.
type Flusher interface {
	Flush(trigger work.Trigger) int
}

type Service struct {
	publisher        Publisher
	flusher          Flusher
	maxBodySizeBytes int
	maxMessageBytes  int
}

func NewService(pub Publisher, flusher Flusher, maxBodySizeMB, maxMessageBytes int) *Service {
	if pub == nil {
		panic("ingestion: publisher must not be nil")
	}
	if flusher == nil {
		panic("ingestion: flusher must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		publisher:        pub,
		flusher:          flusher,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
		maxMessageBytes:  maxMessageBytes,
	}
}

// RegisterRoutes registers the crunch request routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/crunch", s.EnqueueHandler)
	r.POST("/v1/crunch/flush", s.FlushHandler)
}
