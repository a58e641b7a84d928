package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/healthbridge/go-medscheme/internal/core"
)

type PromoCodeRepoMongo struct {
	coll      *mongodrv.Collection
	opTimeout time.Duration
}

func NewPromoCodeRepo(db *mongodrv.Database, opTimeout time.Duration) *PromoCodeRepoMongo {
	return &PromoCodeRepoMongo{coll: db.Collection(ColPromoCodes), opTimeout: opTimeout}
}

func (repo *PromoCodeRepoMongo) GetByCode(ctx context.Context, code string) (core.PromoCode, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc PromoCodeDoc
	err := repo.coll.FindOne(ctx, bson.M{"code": strings.ToUpper(code)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.PromoCode{}, core.ErrPromoNotFound
		}
		return core.PromoCode{}, fmt.Errorf("promo_codes.findOne: %w", err)
	}
	return fromPromoCodeDoc(doc), nil
}

func (repo *PromoCodeRepoMongo) Upsert(ctx context.Context, p core.PromoCode) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	p.Code = strings.ToUpper(p.Code)
	opts := options.Replace().SetUpsert(true)
	_, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, toPromoCodeDoc(p), opts)
	if err != nil {
		if isDuplicateKey(err) {
			return core.ErrConflict
		}
		return fmt.Errorf("promo_codes.upsert: %w", err)
	}
	return nil
}

// ConsumeUse is the double-spend guard: the filter only matches while
// current_uses is under max_uses, so two concurrent redemptions of a
// single-use code cannot both succeed.
func (repo *PromoCodeRepoMongo) ConsumeUse(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	filter := bson.M{
		"_id": id,
		"$or": []bson.M{
			{"max_uses": nil},
			{"$expr": bson.M{"$lt": bson.A{"$current_uses", "$max_uses"}}},
		},
	}
	result, err := repo.coll.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"current_uses": 1}})
	if err != nil {
		return fmt.Errorf("promo_codes.consumeUse: %w", err)
	}
	if result.MatchedCount == 0 {
		var doc PromoCodeDoc
		if err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
			if errors.Is(err, mongodrv.ErrNoDocuments) {
				return core.ErrPromoNotFound
			}
			return fmt.Errorf("promo_codes.findOne: %w", err)
		}
		return core.ErrPromoExhausted
	}
	return nil
}
