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

type PolicyRepoMongo struct {
	coll      *mongodrv.Collection
	counters  *mongodrv.Collection
	opTimeout time.Duration
	clock     func() time.Time
}

func NewPolicyRepo(db *mongodrv.Database, opTimeout time.Duration) *PolicyRepoMongo {
	return &PolicyRepoMongo{
		coll:      db.Collection(ColPolicies),
		counters:  db.Collection(ColCounters),
		opTimeout: opTimeout,
		clock:     time.Now,
	}
}

func (repo *PolicyRepoMongo) Create(ctx context.Context, p core.Policy) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	doc := toPolicyDoc(p)
	doc.Revision = 1
	_, err := repo.coll.InsertOne(ctx, doc)
	if err != nil {
		if isDuplicateKey(err) {
			return core.ErrPolicyExists
		}
		return fmt.Errorf("policies.insert: %w", err)
	}
	return nil
}

func (repo *PolicyRepoMongo) Get(ctx context.Context, id string) (core.Policy, error) {
	return repo.findOne(ctx, bson.M{"_id": id})
}

func (repo *PolicyRepoMongo) GetByNumber(ctx context.Context, number string) (core.Policy, error) {
	return repo.findOne(ctx, bson.M{"number": number})
}

func (repo *PolicyRepoMongo) GetByApplicationID(ctx context.Context, appID string) (core.Policy, error) {
	return repo.findOne(ctx, bson.M{"application_id": appID})
}

func (repo *PolicyRepoMongo) findOne(ctx context.Context, filter bson.M) (core.Policy, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc PolicyDoc
	err := repo.coll.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.Policy{}, core.ErrPolicyNotFound
		}
		return core.Policy{}, fmt.Errorf("policies.findOne: %w", err)
	}
	return fromPolicyDoc(doc), nil
}

func (repo *PolicyRepoMongo) Update(ctx context.Context, p core.Policy) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	doc := toPolicyDoc(p)
	doc.Revision = p.Revision + 1
	result, err := repo.coll.ReplaceOne(ctx,
		bson.M{"_id": p.ID, "revision": p.Revision}, doc)
	if err != nil {
		return fmt.Errorf("policies.replace: %w", err)
	}
	if result.MatchedCount == 0 {
		count, err := repo.coll.CountDocuments(ctx, bson.M{"_id": p.ID})
		if err != nil {
			return fmt.Errorf("policies.count: %w", err)
		}
		if count == 0 {
			return core.ErrPolicyNotFound
		}
		return fmt.Errorf("%w: policy %s was modified concurrently", core.ErrConflict, p.ID)
	}
	return nil
}

func (repo *PolicyRepoMongo) List(ctx context.Context, filter core.PolicyFilter, limit, offset int) ([]core.Policy, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	query := bson.M{}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.PlanID != "" {
		query["plan_id"] = filter.PlanID
	}

	total, err := repo.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("policies.count: %w", err)
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.D{{Key: "issued_at", Value: -1}})
	cursor, err := repo.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("policies.find: %w", err)
	}
	defer cursor.Close(ctx)

	var policies []core.Policy
	for cursor.Next(ctx) {
		var doc PolicyDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("policies.decode: %w", err)
		}
		policies = append(policies, fromPolicyDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("policies.cursor: %w", err)
	}
	return policies, total, nil
}

// NextPolicyNumber allocates a sequential number from a per-year counter
// document, formatted like MED-2026-000042.
func (repo *PolicyRepoMongo) NextPolicyNumber(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	year := repo.clock().UTC().Year()
	counterID := fmt.Sprintf("policy_number_%d", year)

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := repo.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": counterID},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return "", fmt.Errorf("counters.next: %w", err)
	}
	return fmt.Sprintf("MED-%d-%06d", year, counter.Seq), nil
}

func (repo *PolicyRepoMongo) FindActive(ctx context.Context, limit int) ([]core.Policy, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	opts := options.Find().SetLimit(int64(limit)).SetSort(bson.D{{Key: "updated_at", Value: 1}})
	cursor, err := repo.coll.Find(ctx, bson.M{"status": string(core.PolicyStatusActive)}, opts)
	if err != nil {
		return nil, fmt.Errorf("policies.findActive: %w", err)
	}
	defer cursor.Close(ctx)

	var policies []core.Policy
	for cursor.Next(ctx) {
		var doc PolicyDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("policies.decode: %w", err)
		}
		policies = append(policies, fromPolicyDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("policies.cursor: %w", err)
	}
	return policies, nil
}
