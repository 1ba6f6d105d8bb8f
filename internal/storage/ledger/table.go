package ledger

import (
	"context"
	"database/sql"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
)

var _ ILedgerTable = (*Table)(nil)

// Table is the Postgres implementation of ILedgerTable.
type Table struct {
	exec bob.Executor
}

func NewTable(db *sql.DB) *Table {
	return &Table{exec: bob.NewDB(db)}
}

func (t *Table) Append(ctx context.Context, create *TransactionCreate) (uuid.UUID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}
	q := psql.Insert(
		im.Into("transactions",
			"id", "account_id", "category_id", "amount", "transaction_name",
			"transaction_date", "note", "rule_id", "request_tag",
		),
		im.Values(psql.Arg(
			id, create.AccountID, create.CategoryID, create.Amount,
			create.TransactionName, create.TransactionDate, create.Note,
			create.RuleID, create.RequestTag,
		)),
	)
	if _, err := bob.Exec(ctx, t.exec, q); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
