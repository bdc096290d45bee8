package repository

import "github.com/jackc/pgx/v5/pgxpool"

// PostgresStore combines the fleet and trip repositories into a Store.
type PostgresStore struct {
	*FleetRepository
	*TripRepository
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore builds a Store on pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		FleetRepository: NewFleetRepository(pool),
		TripRepository:  NewTripRepository(pool),
	}
}
