package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/carson-networks/recurring-server/internal/config"
	"github.com/carson-networks/recurring-server/internal/storage/ledger"
	"github.com/carson-networks/recurring-server/internal/storage/rulestore"
)

type Storage struct {
	DB     *sql.DB
	Rules  rulestore.IRuleStore
	Ledger ledger.ILedgerTable
}

func NewStorage(env *config.Config) (*Storage, error) {
	connStr := "postgres://" + env.PostgresUsername + ":" +
		env.PostgresPassword + "@" + env.PostgresAddress + ":" +
		env.PostgresPort + "/" + env.PostgresDB + "?sslmode=disable"

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	return &Storage{
		DB:     db,
		Rules:  rulestore.NewStore(db),
		Ledger: ledger.NewTable(db),
	}, nil
}
