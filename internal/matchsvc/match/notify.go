package match

import (
	"context"

	"github.com/shlokmonster/wingames/internal/matchsvc/models"
)

// Notifier delivers outbound events to connected clients. Implementations
// must be safe for concurrent use and must not block the caller.
type Notifier interface {
	ToSocket(socketId string, event string, payload interface{})
	ToRoom(socketIds []string, event string, payload interface{})
	Broadcast(event string, payload interface{})
}

// Archiver persists match records so settled and abandoned matches survive
// a coordinator restart. SaveMatch upserts by room id.
type Archiver interface {
	SaveMatch(ctx context.Context, rec *models.MatchRecord) error
}
