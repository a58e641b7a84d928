package core

import (
	"context"
	"fmt"
)

// Plan is a benefit plan under a scheme. Plans are reference data owned by
// the catalog service; the engine only reads them to scope rate cards,
// addon rates and discount rules.
type Plan struct {
	ID       string `json:"id"`
	SchemeID string `json:"scheme_id"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
}

type PlanRepo interface {
	Get(ctx context.Context, id string) (Plan, error)
	List(ctx context.Context) ([]Plan, error)
	Upsert(ctx context.Context, p Plan) error
}

var ErrPlanNotFound = fmt.Errorf("%w: plan not found", ErrNotFound)
