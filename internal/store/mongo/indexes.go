package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if err := ensureRateCardsIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure rate_cards indexes: %w", err)
	}
	if err := ensureAddonsIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure addons indexes: %w", err)
	}
	if err := ensureDiscountRulesIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure discount_rules indexes: %w", err)
	}
	if err := ensurePromoCodesIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure promo_codes indexes: %w", err)
	}
	if err := ensureApplicationsIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure applications indexes: %w", err)
	}
	if err := ensurePoliciesIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure policies indexes: %w", err)
	}
	return nil
}

func ensureRateCardsIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ColRateCards)
	models := []mongo.IndexModel{
		newIndex("plan_id", 1, "rate_cards_plan_id", false),
		{Keys: bson.D{{Key: "plan_id", Value: 1}, {Key: "is_active", Value: 1}},
			Options: options.Index().SetName("rate_cards_plan_active"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func ensureAddonsIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ColAddons)
	models := []mongo.IndexModel{
		newIndex("code", 1, "addons_code_unique", true),
	}
	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		return err
	}

	rates := db.Collection(ColAddonRates)
	rateModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "addon_id", Value: 1}, {Key: "plan_id", Value: 1}, {Key: "active", Value: 1}},
			Options: options.Index().SetName("addon_rates_lookup"),
		},
	}
	_, err := rates.Indexes().CreateMany(ctx, rateModels)
	return err
}

func ensureDiscountRulesIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ColDiscountRules)
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "application_method", Value: 1}, {Key: "active", Value: 1}},
			Options: options.Index().SetName("discount_rules_method_active"),
		},
		newIndex("priority", -1, "discount_rules_priority_desc", false),
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func ensurePromoCodesIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ColPromoCodes)
	models := []mongo.IndexModel{
		newIndex("code", 1, "promo_codes_code_unique", true),
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func ensureApplicationsIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ColApplications)
	models := []mongo.IndexModel{
		newIndex("status", 1, "apps_status", false),
		newIndex("plan_id", 1, "apps_plan_id", false),
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "quote_valid_until", Value: 1}},
			Options: options.Index().SetName("apps_quote_expiry"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func ensurePoliciesIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ColPolicies)
	models := []mongo.IndexModel{
		newIndex("number", 1, "policies_number_unique", true),
		newIndex("application_id", 1, "policies_application_id_unique", true),
		newIndex("status", 1, "policies_status", false),
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func newIndex(field string, asc int32, name string, unique bool) mongo.IndexModel {
	opts := options.Index().SetName(name)
	if unique {
		opts = opts.SetUnique(true)
	}
	return mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: asc}},
		Options: opts,
	}
}
