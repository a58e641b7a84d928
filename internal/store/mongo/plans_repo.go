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

type PlanRepoMongo struct {
	coll      *mongodrv.Collection
	opTimeout time.Duration
}

func NewPlanRepo(db *mongodrv.Database, opTimeout time.Duration) *PlanRepoMongo {
	return &PlanRepoMongo{coll: db.Collection(ColPlans), opTimeout: opTimeout}
}

func (repo *PlanRepoMongo) Get(ctx context.Context, id string) (core.Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc PlanDoc
	err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.Plan{}, core.ErrPlanNotFound
		}
		return core.Plan{}, fmt.Errorf("plans.findOne: %w", err)
	}
	return fromPlanDoc(doc), nil
}

func (repo *PlanRepoMongo) List(ctx context.Context) ([]core.Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := repo.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("plans.find: %w", err)
	}
	defer cursor.Close(ctx)

	var plans []core.Plan
	for cursor.Next(ctx) {
		var doc PlanDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("plans.decode: %w", err)
		}
		plans = append(plans, fromPlanDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("plans.cursor: %w", err)
	}
	return plans, nil
}

func (repo *PlanRepoMongo) Upsert(ctx context.Context, p core.Plan) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	doc := toPlanDoc(p)
	opts := options.Replace().SetUpsert(true)
	_, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, opts)
	if err != nil {
		return fmt.Errorf("plans.upsert: %w", err)
	}
	return nil
}
