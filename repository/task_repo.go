package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/phamduchanh/docvec-be/types"
)

// TaskRepo archives finished ingestion tasks so history survives restarts.
type TaskRepo interface {
	SaveTask(ctx context.Context, task *types.Task) error
	GetTask(ctx context.Context, id string) (*types.Task, error)
	ListTasks(ctx context.Context, status string, limit, offset int) ([]*types.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type taskRepo struct {
	collection *mongo.Collection
}

func NewTaskRepo(db *mongo.Database) TaskRepo {
	collection := db.Collection("tasks")
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(context.Background(), indexes); err != nil {
		log.Printf("Error creating task indexes: %v", err)
	}
	return &taskRepo{collection: collection}
}

// SaveTask upserts by task ID so repeated finishes of the same task do not
// create duplicates.
func (r *taskRepo) SaveTask(ctx context.Context, task *types.Task) error {
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"id": task.ID},
		task,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *taskRepo) GetTask(ctx context.Context, id string) (*types.Task, error) {
	var task types.Task
	err := r.collection.FindOne(ctx, bson.M{"id": id}).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("task %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepo) ListTasks(ctx context.Context, status string, limit, offset int) ([]*types.Task, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tasks []*types.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepo) DeleteTask(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"id": id})
	return err
}
