package notify

import (
	"context"
	"log"
	"os"
	"time"

	"go_edge_gateway/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB names for the notification history mirror
const (
	MongoHistoryDBName     = "edge_gateway"
	MongoHistoryCollection = "notification_history"
)

// HistoryMirror mirrors dispatched notifications into MongoDB for audit and
// cross-device catch-up. Entirely optional: when MONGODB_URI is not set the
// mirror is disabled and every call is a no-op.
type HistoryMirror struct {
	collection *mongo.Collection
}

// historyDocument is the stored mirror shape
type historyDocument struct {
	Tag                string    `bson:"_id"`
	Title              string    `bson:"title"`
	Body               string    `bson:"body"`
	TargetURL          string    `bson:"target_url"`
	RequireInteraction bool      `bson:"require_interaction"`
	DispatchedAt       time.Time `bson:"dispatched_at"`
}

// InitHistoryMirror connects the mirror when MONGODB_URI is configured.
// Returns nil (mirror disabled) when it is not; connection failures also
// disable the mirror rather than blocking startup.
func InitHistoryMirror() *HistoryMirror {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		log.Println("MONGODB_URI not set, notification history mirror disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(mongoURI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMaxConnIdleTime(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		log.Printf("MongoDB connect failed, history mirror disabled: %v", err)
		return nil
	}
	if err := client.Ping(ctx, nil); err != nil {
		log.Printf("MongoDB ping failed, history mirror disabled: %v", err)
		return nil
	}

	log.Println("Notification history mirror connected")
	return &HistoryMirror{
		collection: client.Database(MongoHistoryDBName).Collection(MongoHistoryCollection),
	}
}

// Record mirrors one notification. Safe on a nil mirror; mirror failures
// are logged and never fail the dispatch.
func (h *HistoryMirror) Record(ctx context.Context, record *models.NotificationRecord) {
	if h == nil || h.collection == nil {
		return
	}

	doc := historyDocument{
		Tag:                record.Tag,
		Title:              record.Title,
		Body:               record.Body,
		TargetURL:          record.TargetURL,
		RequireInteraction: record.RequireInteraction,
		DispatchedAt:       time.Now().UTC(),
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := h.collection.ReplaceOne(ctx, bson.M{"_id": doc.Tag}, doc, opts); err != nil {
		log.Printf("History mirror write failed for %s: %v", doc.Tag, err)
	}
}
