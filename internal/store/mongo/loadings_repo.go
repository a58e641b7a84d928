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

type LoadingRuleRepoMongo struct {
	coll      *mongodrv.Collection
	opTimeout time.Duration
}

func NewLoadingRuleRepo(db *mongodrv.Database, opTimeout time.Duration) *LoadingRuleRepoMongo {
	return &LoadingRuleRepoMongo{coll: db.Collection(ColLoadingRules), opTimeout: opTimeout}
}

func (repo *LoadingRuleRepoMongo) Get(ctx context.Context, id string) (core.LoadingRule, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc LoadingRuleDoc
	err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.LoadingRule{}, core.ErrLoadingRuleNotFound
		}
		return core.LoadingRule{}, fmt.Errorf("loading_rules.findOne: %w", err)
	}
	return fromLoadingRuleDoc(doc), nil
}

func (repo *LoadingRuleRepoMongo) FindActive(ctx context.Context) ([]core.LoadingRule, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "condition_name", Value: 1}})
	cursor, err := repo.coll.Find(ctx, bson.M{"active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("loading_rules.find: %w", err)
	}
	defer cursor.Close(ctx)

	var rules []core.LoadingRule
	for cursor.Next(ctx) {
		var doc LoadingRuleDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("loading_rules.decode: %w", err)
		}
		rules = append(rules, fromLoadingRuleDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("loading_rules.cursor: %w", err)
	}
	return rules, nil
}

func (repo *LoadingRuleRepoMongo) Upsert(ctx context.Context, r core.LoadingRule) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	_, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": r.ID}, toLoadingRuleDoc(r), opts)
	if err != nil {
		return fmt.Errorf("loading_rules.upsert: %w", err)
	}
	return nil
}
