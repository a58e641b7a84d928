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

type DiscountRuleRepoMongo struct {
	coll      *mongodrv.Collection
	opTimeout time.Duration
}

func NewDiscountRuleRepo(db *mongodrv.Database, opTimeout time.Duration) *DiscountRuleRepoMongo {
	return &DiscountRuleRepoMongo{coll: db.Collection(ColDiscountRules), opTimeout: opTimeout}
}

func (repo *DiscountRuleRepoMongo) Get(ctx context.Context, id string) (core.DiscountRule, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc DiscountRuleDoc
	err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.DiscountRule{}, core.ErrDiscountRuleNotFound
		}
		return core.DiscountRule{}, fmt.Errorf("discount_rules.findOne: %w", err)
	}
	return fromDiscountRuleDoc(doc), nil
}

func (repo *DiscountRuleRepoMongo) FindAutomatic(ctx context.Context, schemeID, planID string, on time.Time) ([]core.DiscountRule, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	filter := bson.M{
		"active":             true,
		"application_method": string(core.MethodAutomatic),
		"scheme_id":          bson.M{"$in": []string{schemeID, ""}},
		"plan_id":            bson.M{"$in": []string{planID, ""}},
		"$and": []bson.M{
			{"$or": []bson.M{
				{"effective_from": nil},
				{"effective_from": bson.M{"$lte": on}},
			}},
			{"$or": []bson.M{
				{"effective_to": nil},
				{"effective_to": bson.M{"$gte": on}},
			}},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "priority", Value: -1}})

	cursor, err := repo.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("discount_rules.find: %w", err)
	}
	defer cursor.Close(ctx)

	var rules []core.DiscountRule
	for cursor.Next(ctx) {
		var doc DiscountRuleDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("discount_rules.decode: %w", err)
		}
		rules = append(rules, fromDiscountRuleDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("discount_rules.cursor: %w", err)
	}
	return rules, nil
}

func (repo *DiscountRuleRepoMongo) Upsert(ctx context.Context, r core.DiscountRule) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	_, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": r.ID}, toDiscountRuleDoc(r), opts)
	if err != nil {
		return fmt.Errorf("discount_rules.upsert: %w", err)
	}
	return nil
}

// IncrementUsage bumps usage_count only while under usage_limit. The filter
// makes the check-and-increment one atomic document operation.
func (repo *DiscountRuleRepoMongo) IncrementUsage(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	filter := bson.M{
		"_id": id,
		"$or": []bson.M{
			{"usage_limit": nil},
			{"$expr": bson.M{"$lt": bson.A{"$usage_count", "$usage_limit"}}},
		},
	}
	result, err := repo.coll.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"usage_count": 1}})
	if err != nil {
		return fmt.Errorf("discount_rules.incrementUsage: %w", err)
	}
	if result.MatchedCount == 0 {
		// either missing or at its limit; disambiguate for the caller
		if _, err := repo.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: discount rule usage limit reached", core.ErrValidation)
	}
	return nil
}
