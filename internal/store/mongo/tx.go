package mongo

import (
	"context"
	"fmt"

	mongodrv "go.mongodb.org/mongo-driver/mongo"
)

// TxRunner executes a function inside a MongoDB session transaction. Repos
// called with the session context participate in the same transaction, so a
// promo redemption and the quote it discounts commit or abort together.
// Requires a replica set; standalone servers reject transactions.
type TxRunner struct {
	client *mongodrv.Client
}

func NewTxRunner(c *MongoClient) *TxRunner {
	return &TxRunner{client: c.Client}
}

func (t *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongodrv.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
