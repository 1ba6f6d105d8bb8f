package ledger

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// TransactionCreate is the payload appended to the ledger for one
// materialized occurrence. RuleID and RequestTag are provenance for
// traceability and debugging, not deduplication.
type TransactionCreate struct {
	AccountID       uuid.UUID
	CategoryID      uuid.UUID
	Amount          decimal.Decimal
	TransactionName string
	TransactionDate time.Time
	Note            string
	RuleID          *uuid.UUID
	RequestTag      string
}

// ILedgerTable is the TransactionSink contract. Append is called at most
// once per materialized occurrence; the engine's advance-then-append
// protocol guarantees it.
type ILedgerTable interface {
	Append(ctx context.Context, create *TransactionCreate) (uuid.UUID, error)
}
