package store

import (
	"context"
	"time"

	"github.com/shlokmonster/wingames/internal/matchsvc/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ArchiveStore persists match records in the matches collection so settled
// and abandoned matches survive coordinator restarts.
type ArchiveStore struct {
	col *mongo.Collection
}

func NewArchiveStore(db *mongo.Database) *ArchiveStore {
	return &ArchiveStore{col: db.Collection("matches")}
}

// SaveMatch upserts the record by room id, so activation and a later
// abandonment report land on the same document.
func (s *ArchiveStore) SaveMatch(ctx context.Context, rec *models.MatchRecord) error {
	rec.UpdatedAt = time.Now()

	filter := bson.M{"room_id": rec.RoomId}
	update := bson.M{"$set": rec}
	opts := options.Update().SetUpsert(true)

	_, err := s.col.UpdateOne(ctx, filter, update, opts)
	return err
}

// FindByRoomID is used by the outcome-verification tooling to look a match
// up by its room id.
func (s *ArchiveStore) FindByRoomID(ctx context.Context, roomId string) (*models.MatchRecord, error) {
	rec := &models.MatchRecord{}
	err := s.col.FindOne(ctx, bson.M{"room_id": roomId}).Decode(rec)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
