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

type AddonRepoMongo struct {
	addons    *mongodrv.Collection
	rates     *mongodrv.Collection
	opTimeout time.Duration
}

func NewAddonRepo(db *mongodrv.Database, opTimeout time.Duration) *AddonRepoMongo {
	return &AddonRepoMongo{
		addons:    db.Collection(ColAddons),
		rates:     db.Collection(ColAddonRates),
		opTimeout: opTimeout,
	}
}

func (repo *AddonRepoMongo) GetAddon(ctx context.Context, id string) (core.Addon, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc AddonDoc
	err := repo.addons.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.Addon{}, core.ErrAddonNotFound
		}
		return core.Addon{}, fmt.Errorf("addons.findOne: %w", err)
	}
	return fromAddonDoc(doc), nil
}

func (repo *AddonRepoMongo) ListAddons(ctx context.Context) ([]core.Addon, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "code", Value: 1}})
	cursor, err := repo.addons.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("addons.find: %w", err)
	}
	defer cursor.Close(ctx)

	var addons []core.Addon
	for cursor.Next(ctx) {
		var doc AddonDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("addons.decode: %w", err)
		}
		addons = append(addons, fromAddonDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("addons.cursor: %w", err)
	}
	return addons, nil
}

func (repo *AddonRepoMongo) UpsertAddon(ctx context.Context, a core.Addon) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	_, err := repo.addons.ReplaceOne(ctx, bson.M{"_id": a.ID}, toAddonDoc(a), opts)
	if err != nil {
		if isDuplicateKey(err) {
			return core.ErrConflict
		}
		return fmt.Errorf("addons.upsert: %w", err)
	}
	return nil
}

// FindActiveRate prefers a plan-scoped rate over a global one; the
// descending plan_id sort puts non-empty plan scopes first.
func (repo *AddonRepoMongo) FindActiveRate(ctx context.Context, addonID, planID string, on time.Time) (core.AddonRate, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	filter := bson.M{
		"addon_id":   addonID,
		"active":     true,
		"plan_id":    bson.M{"$in": []string{planID, ""}},
		"valid_from": bson.M{"$lte": on},
		"$or": []bson.M{
			{"valid_until": nil},
			{"valid_until": bson.M{"$gte": on}},
		},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "plan_id", Value: -1}})

	var doc AddonRateDoc
	err := repo.rates.FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.AddonRate{}, core.ErrAddonRateNotFound
		}
		return core.AddonRate{}, fmt.Errorf("addon_rates.findOne: %w", err)
	}
	return fromAddonRateDoc(doc), nil
}

func (repo *AddonRepoMongo) UpsertRate(ctx context.Context, r core.AddonRate) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	_, err := repo.rates.ReplaceOne(ctx, bson.M{"_id": r.ID}, toAddonRateDoc(r), opts)
	if err != nil {
		return fmt.Errorf("addon_rates.upsert: %w", err)
	}
	return nil
}
