package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/healthbridge/go-medscheme/internal/core"
)

type ApplicationRepoMongo struct {
	coll      *mongodrv.Collection
	opTimeout time.Duration
}

func NewApplicationRepo(db *mongodrv.Database, opTimeout time.Duration) *ApplicationRepoMongo {
	return &ApplicationRepoMongo{
		coll:      db.Collection(ColApplications),
		opTimeout: opTimeout,
	}
}

func (repo *ApplicationRepoMongo) Create(ctx context.Context, app core.Application) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	doc := toApplicationDoc(app)
	doc.Revision = 1
	_, err := repo.coll.InsertOne(ctx, doc)
	if err != nil {
		if isDuplicateKey(err) {
			return core.ErrConflict
		}
		return fmt.Errorf("applications.insert: %w", err)
	}
	return nil
}

func (repo *ApplicationRepoMongo) Get(ctx context.Context, id string) (core.Application, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc ApplicationDoc
	err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.Application{}, core.ErrApplicationNotFound
		}
		return core.Application{}, fmt.Errorf("applications.findOne: %w", err)
	}
	return fromApplicationDoc(doc), nil
}

// Update replaces the aggregate guarded by the revision the caller read.
// A non-match against an existing document means a concurrent writer got
// there first.
func (repo *ApplicationRepoMongo) Update(ctx context.Context, app core.Application) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	doc := toApplicationDoc(app)
	doc.Revision = app.Revision + 1
	result, err := repo.coll.ReplaceOne(ctx,
		bson.M{"_id": app.ID, "revision": app.Revision}, doc)
	if err != nil {
		return fmt.Errorf("applications.replace: %w", err)
	}
	if result.MatchedCount == 0 {
		count, err := repo.coll.CountDocuments(ctx, bson.M{"_id": app.ID})
		if err != nil {
			return fmt.Errorf("applications.count: %w", err)
		}
		if count == 0 {
			return core.ErrApplicationNotFound
		}
		return fmt.Errorf("%w: application %s was modified concurrently", core.ErrConflict, app.ID)
	}
	return nil
}

func (repo *ApplicationRepoMongo) FindByStatus(ctx context.Context, status core.ApplicationStatus, limit int) ([]core.Application, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	filter := bson.M{"status": string(status)}
	opts := options.Find().SetLimit(int64(limit)).SetSort(bson.D{{Key: "created_at", Value: 1}})
	return repo.find(ctx, filter, opts)
}

func (repo *ApplicationRepoMongo) FindQuoteExpired(ctx context.Context, now time.Time, limit int) ([]core.Application, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	filter := bson.M{
		"status": bson.M{"$in": []string{
			string(core.ApplicationStatusQuoted),
			string(core.ApplicationStatusApproved),
			string(core.ApplicationStatusAccepted),
		}},
		"quote_valid_until": bson.M{"$ne": nil, "$lt": now},
	}
	opts := options.Find().SetLimit(int64(limit)).SetSort(bson.D{{Key: "quote_valid_until", Value: 1}})
	return repo.find(ctx, filter, opts)
}

func (repo *ApplicationRepoMongo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]core.Application, error) {
	cursor, err := repo.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("applications.find: %w", err)
	}
	defer cursor.Close(ctx)

	var apps []core.Application
	for cursor.Next(ctx) {
		var doc ApplicationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("applications.decode: %w", err)
		}
		apps = append(apps, fromApplicationDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("applications.cursor: %w", err)
	}
	return apps, nil
}
