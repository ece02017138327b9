package postgresql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

func PgConnect(ctx context.Context, databaseUrl string) (*pgxpool.Pool, error) {
	pgxPool, err := pgxpool.Connect(ctx, databaseUrl)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.Connect: %w", err)
	}
	return pgxPool, nil
}
