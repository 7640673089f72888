package deck

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Catalog serves deck documents from the deck_catalog table. Decks are
// static content, so this stays within the no-game-state-persistence rule.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(ctx context.Context, dsn string) (*Catalog, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Catalog{pool: pool}, nil
}

func (c *Catalog) Get(ctx context.Context, name string) ([]byte, error) {
	var doc []byte
	err := c.pool.QueryRow(ctx, `SELECT definition FROM deck_catalog WHERE name = $1`, name).Scan(&doc)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Catalog) Close() {
	c.pool.Close()
}
