package rulestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/stephenafamo/scan"

	"github.com/carson-networks/recurring-server/internal/recurrence"
)

var _ IRuleStore = (*Store)(nil)

// Store is the Postgres implementation of IRuleStore.
type Store struct {
	exec bob.Executor
}

func NewStore(db *sql.DB) *Store {
	return &Store{exec: bob.NewDB(db)}
}

var ruleColumns = []any{
	"id", "name", "amount_minor_units", "category_id", "account_id",
	"rule_type", "frequency", "recur_interval", "anchor_date", "end_date",
	"note", "is_active", "next_execution", "last_materialized", "version",
	"created_at",
}

type ruleRow struct {
	ID               uuid.UUID  `db:"id"`
	Name             string     `db:"name"`
	AmountMinorUnits int64      `db:"amount_minor_units"`
	CategoryID       uuid.UUID  `db:"category_id"`
	AccountID        uuid.UUID  `db:"account_id"`
	Type             int16      `db:"rule_type"`
	Frequency        string     `db:"frequency"`
	Interval         int        `db:"recur_interval"`
	AnchorDate       time.Time  `db:"anchor_date"`
	EndDate          *time.Time `db:"end_date"`
	Note             string     `db:"note"`
	IsActive         bool       `db:"is_active"`
	NextExecution    time.Time  `db:"next_execution"`
	LastMaterialized *time.Time `db:"last_materialized"`
	Version          int64      `db:"version"`
	CreatedAt        time.Time  `db:"created_at"`
}

func (s *Store) LoadDueRules(ctx context.Context, now time.Time) ([]*RecurringRule, error) {
	q := psql.Select(
		sm.Columns(ruleColumns...),
		sm.From("recurring_rules"),
		sm.Where(psql.Quote("is_active").EQ(psql.Arg(true))),
		sm.Where(psql.Quote("next_execution").LTE(psql.Arg(now))),
		sm.Where(psql.Quote("end_date").IsNull().
			Or(psql.Quote("next_execution").LTE(psql.Quote("end_date")))),
		sm.OrderBy(psql.Quote("next_execution")).Asc(),
	)
	rows, err := bob.All(ctx, s.exec, q, scan.StructMapper[ruleRow]())
	if err != nil {
		return nil, err
	}
	return rowsToRules(rows), nil
}

func (s *Store) CommitAdvance(ctx context.Context, id uuid.UUID, expectedVersion int64, newNext time.Time, newLast *time.Time) error {
	q := psql.Update(
		um.Table("recurring_rules"),
		um.SetCol("next_execution").ToArg(newNext),
		um.SetCol("last_materialized").ToArg(newLast),
		um.SetCol("version").ToArg(expectedVersion+1),
		um.Where(psql.Quote("id").EQ(psql.Arg(id))),
		um.Where(psql.Quote("version").EQ(psql.Arg(expectedVersion))),
	)
	res, err := bob.Exec(ctx, s.exec, q)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*RecurringRule, error) {
	q := psql.Select(
		sm.Columns(ruleColumns...),
		sm.From("recurring_rules"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)
	row, err := bob.One(ctx, s.exec, q, scan.StructMapper[ruleRow]())
	if err != nil {
		return nil, err
	}
	return rowToRule(row), nil
}

func (s *Store) Insert(ctx context.Context, create *RuleCreate) (uuid.UUID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}
	q := psql.Insert(
		im.Into("recurring_rules",
			"id", "name", "amount_minor_units", "category_id", "account_id",
			"rule_type", "frequency", "recur_interval", "anchor_date",
			"end_date", "note", "next_execution",
		),
		im.Values(psql.Arg(
			id, create.Name, create.AmountMinorUnits, create.CategoryID,
			create.AccountID, int16(create.Type), string(create.Frequency),
			create.Interval, create.AnchorDate, create.EndDate, create.Note,
			create.NextExecution,
		)),
	)
	if _, err := bob.Exec(ctx, s.exec, q); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, id uuid.UUID, update *RuleUpdate) error {
	mods := []bob.Mod[*dialect.UpdateQuery]{
		um.Table("recurring_rules"),
		um.Where(psql.Quote("id").EQ(psql.Arg(id))),
		um.SetCol("version").To(psql.Raw("version + 1")),
	}
	if update.Name.IsValue() {
		mods = append(mods, um.SetCol("name").ToArg(update.Name.GetOrZero()))
	}
	if update.AmountMinorUnits.IsValue() {
		mods = append(mods, um.SetCol("amount_minor_units").ToArg(update.AmountMinorUnits.GetOrZero()))
	}
	if update.CategoryID.IsValue() {
		mods = append(mods, um.SetCol("category_id").ToArg(update.CategoryID.GetOrZero()))
	}
	if update.AccountID.IsValue() {
		mods = append(mods, um.SetCol("account_id").ToArg(update.AccountID.GetOrZero()))
	}
	if update.Type.IsValue() {
		mods = append(mods, um.SetCol("rule_type").ToArg(int16(update.Type.GetOrZero())))
	}
	if update.Frequency.IsValue() {
		mods = append(mods, um.SetCol("frequency").ToArg(string(update.Frequency.GetOrZero())))
	}
	if update.Interval.IsValue() {
		mods = append(mods, um.SetCol("recur_interval").ToArg(update.Interval.GetOrZero()))
	}
	if update.AnchorDate.IsValue() {
		mods = append(mods, um.SetCol("anchor_date").ToArg(update.AnchorDate.GetOrZero()))
	}
	if update.EndDate.IsValue() {
		mods = append(mods, um.SetCol("end_date").ToArg(update.EndDate.GetOrZero()))
	} else if update.EndDate.IsNull() {
		mods = append(mods, um.SetCol("end_date").ToArg(nil))
	}
	if update.Note.IsValue() {
		mods = append(mods, um.SetCol("note").ToArg(update.Note.GetOrZero()))
	}
	if update.NextExecution.IsValue() {
		mods = append(mods, um.SetCol("next_execution").ToArg(update.NextExecution.GetOrZero()))
	}

	_, err := bob.Exec(ctx, s.exec, psql.Update(mods...))
	return err
}

func (s *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	q := psql.Update(
		um.Table("recurring_rules"),
		um.SetCol("is_active").ToArg(active),
		um.SetCol("version").To(psql.Raw("version + 1")),
		um.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)
	_, err := bob.Exec(ctx, s.exec, q)
	return err
}

func (s *Store) List(ctx context.Context, filter *RuleFilter) ([]*RecurringRule, error) {
	queryMods := []bob.Mod[*dialect.SelectQuery]{
		sm.Columns(ruleColumns...),
		sm.From("recurring_rules"),
		sm.OrderBy(psql.Quote("created_at")).Desc(),
		sm.OrderBy(psql.Quote("id")).Desc(),
	}
	if filter != nil {
		if filter.Limit > 0 {
			queryMods = append(queryMods, sm.Limit(filter.Limit+1))
		}
		if filter.Offset > 0 {
			queryMods = append(queryMods, sm.Offset(filter.Offset))
		}
	}
	rows, err := bob.All(ctx, s.exec, psql.Select(queryMods...), scan.StructMapper[ruleRow]())
	if err != nil {
		return nil, err
	}
	return rowsToRules(rows), nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	q := psql.Delete(
		dm.From("recurring_rules"),
		dm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)
	_, err := bob.Exec(ctx, s.exec, q)
	return err
}

func rowToRule(row ruleRow) *RecurringRule {
	return &RecurringRule{
		ID:               row.ID,
		Name:             row.Name,
		AmountMinorUnits: row.AmountMinorUnits,
		CategoryID:       row.CategoryID,
		AccountID:        row.AccountID,
		Type:             RuleType(row.Type),
		Frequency:        recurrence.Frequency(row.Frequency),
		Interval:         row.Interval,
		AnchorDate:       row.AnchorDate,
		EndDate:          row.EndDate,
		Note:             row.Note,
		IsActive:         row.IsActive,
		NextExecution:    row.NextExecution,
		LastMaterialized: row.LastMaterialized,
		Version:          row.Version,
		CreatedAt:        row.CreatedAt,
	}
}

func rowsToRules(rows []ruleRow) []*RecurringRule {
	result := make([]*RecurringRule, len(rows))
	for i, row := range rows {
		result[i] = rowToRule(row)
	}
	return result
}
