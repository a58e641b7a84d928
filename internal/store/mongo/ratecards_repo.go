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

type RateCardRepoMongo struct {
	coll      *mongodrv.Collection
	opTimeout time.Duration
}

func NewRateCardRepo(db *mongodrv.Database, opTimeout time.Duration) *RateCardRepoMongo {
	return &RateCardRepoMongo{coll: db.Collection(ColRateCards), opTimeout: opTimeout}
}

func (repo *RateCardRepoMongo) Create(ctx context.Context, rc core.RateCard) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	_, err := repo.coll.InsertOne(ctx, toRateCardDoc(rc))
	if err != nil {
		if isDuplicateKey(err) {
			return core.ErrConflict
		}
		return fmt.Errorf("rate_cards.insert: %w", err)
	}
	return nil
}

func (repo *RateCardRepoMongo) Get(ctx context.Context, id string) (core.RateCard, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc RateCardDoc
	err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.RateCard{}, core.ErrRateCardNotFound
		}
		return core.RateCard{}, fmt.Errorf("rate_cards.findOne: %w", err)
	}
	return fromRateCardDoc(doc), nil
}

func (repo *RateCardRepoMongo) GetActiveByPlan(ctx context.Context, planID string) (core.RateCard, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc RateCardDoc
	err := repo.coll.FindOne(ctx, bson.M{"plan_id": planID, "is_active": true}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.RateCard{}, core.ErrRateCardNotFound
		}
		return core.RateCard{}, fmt.Errorf("rate_cards.findActive: %w", err)
	}
	return fromRateCardDoc(doc), nil
}

func (repo *RateCardRepoMongo) Update(ctx context.Context, rc core.RateCard) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	result, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": rc.ID}, toRateCardDoc(rc))
	if err != nil {
		return fmt.Errorf("rate_cards.replace: %w", err)
	}
	if result.MatchedCount == 0 {
		return core.ErrRateCardNotFound
	}
	return nil
}

// Activate flips cardID active and retires the plan's previously active
// cards in one pass, so readers never see two active cards on a plan.
func (repo *RateCardRepoMongo) Activate(ctx context.Context, planID, cardID string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	_, err := repo.coll.UpdateMany(ctx,
		bson.M{"plan_id": planID, "is_active": true, "_id": bson.M{"$ne": cardID}},
		bson.M{"$set": bson.M{
			"is_active":  false,
			"status":     string(core.RateCardStatusRetired),
			"updated_at": now,
		}})
	if err != nil {
		return fmt.Errorf("rate_cards.deactivateOthers: %w", err)
	}

	result, err := repo.coll.UpdateOne(ctx,
		bson.M{"_id": cardID, "plan_id": planID},
		bson.M{"$set": bson.M{
			"is_active":  true,
			"status":     string(core.RateCardStatusActive),
			"updated_at": now,
		}})
	if err != nil {
		return fmt.Errorf("rate_cards.activate: %w", err)
	}
	if result.MatchedCount == 0 {
		return core.ErrRateCardNotFound
	}
	return nil
}

func (repo *RateCardRepoMongo) ListByPlan(ctx context.Context, planID string) ([]core.RateCard, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := repo.coll.Find(ctx, bson.M{"plan_id": planID}, opts)
	if err != nil {
		return nil, fmt.Errorf("rate_cards.find: %w", err)
	}
	defer cursor.Close(ctx)

	var cards []core.RateCard
	for cursor.Next(ctx) {
		var doc RateCardDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("rate_cards.decode: %w", err)
		}
		cards = append(cards, fromRateCardDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("rate_cards.cursor: %w", err)
	}
	return cards, nil
}

func isDuplicateKey(err error) bool {
	var we mongodrv.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}
