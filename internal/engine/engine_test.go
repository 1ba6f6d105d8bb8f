package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/recurring-server/internal/logging"
	"github.com/carson-networks/recurring-server/internal/recurrence"
	"github.com/carson-networks/recurring-server/internal/storage/ledger"
	"github.com/carson-networks/recurring-server/internal/storage/rulestore"
)

// fakeRuleStore is an in-memory IRuleStore with real CAS semantics, so the
// advance protocol can be exercised end to end without a database.
type fakeRuleStore struct {
	mu    sync.Mutex
	rules map[uuid.UUID]*rulestore.RecurringRule

	// conflictsRemaining injects that many artificial version conflicts
	// before CommitAdvance behaves normally again.
	conflictsRemaining int
	advanceErr         error
}

func newFakeRuleStore(rules ...*rulestore.RecurringRule) *fakeRuleStore {
	s := &fakeRuleStore{rules: make(map[uuid.UUID]*rulestore.RecurringRule)}
	for _, r := range rules {
		clone := *r
		s.rules[r.ID] = &clone
	}
	return s
}

func (s *fakeRuleStore) LoadDueRules(_ context.Context, now time.Time) ([]*rulestore.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*rulestore.RecurringRule
	for _, r := range s.rules {
		if !r.IsActive || r.NextExecution.After(now) {
			continue
		}
		if r.EndDate != nil && r.NextExecution.After(*r.EndDate) {
			continue
		}
		clone := *r
		due = append(due, &clone)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextExecution.Before(due[j].NextExecution) })
	return due, nil
}

func (s *fakeRuleStore) CommitAdvance(_ context.Context, id uuid.UUID, expectedVersion int64, newNext time.Time, newLast *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.advanceErr != nil {
		return s.advanceErr
	}
	if s.conflictsRemaining > 0 {
		s.conflictsRemaining--
		return rulestore.ErrVersionConflict
	}
	r, ok := s.rules[id]
	if !ok || r.Version != expectedVersion {
		return rulestore.ErrVersionConflict
	}
	r.NextExecution = newNext
	r.LastMaterialized = newLast
	r.Version++
	return nil
}

func (s *fakeRuleStore) FindByID(_ context.Context, id uuid.UUID) (*rulestore.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("rule %s not found", id)
	}
	clone := *r
	return &clone, nil
}

func (s *fakeRuleStore) Insert(context.Context, *rulestore.RuleCreate) (uuid.UUID, error) {
	panic("not used by the engine")
}

func (s *fakeRuleStore) Update(context.Context, uuid.UUID, *rulestore.RuleUpdate) error {
	panic("not used by the engine")
}

func (s *fakeRuleStore) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[id].IsActive = active
	s.rules[id].Version++
	return nil
}

func (s *fakeRuleStore) List(context.Context, *rulestore.RuleFilter) ([]*rulestore.RecurringRule, error) {
	panic("not used by the engine")
}

func (s *fakeRuleStore) Delete(context.Context, uuid.UUID) error {
	panic("not used by the engine")
}

func (s *fakeRuleStore) get(id uuid.UUID) *rulestore.RecurringRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *s.rules[id]
	return &clone
}

type fakeLedger struct {
	mu       sync.Mutex
	appended []*ledger.TransactionCreate

	// failuresRemaining injects that many append failures.
	failuresRemaining int
}

func (l *fakeLedger) Append(_ context.Context, create *ledger.TransactionCreate) (uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failuresRemaining > 0 {
		l.failuresRemaining--
		return uuid.Nil, errors.New("ledger unavailable")
	}
	l.appended = append(l.appended, create)
	return uuid.Must(uuid.NewV4()), nil
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.appended)
}

func utc(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func monthlyRule(anchor time.Time) *rulestore.RecurringRule {
	return &rulestore.RecurringRule{
		ID:               uuid.Must(uuid.NewV4()),
		Name:             "Rent",
		AmountMinorUnits: 120000,
		CategoryID:       uuid.Must(uuid.NewV4()),
		AccountID:        uuid.Must(uuid.NewV4()),
		Type:             rulestore.RuleTypeExpense,
		Frequency:        recurrence.Monthly,
		Interval:         1,
		AnchorDate:       anchor,
		IsActive:         true,
		NextExecution:    anchor,
		Version:          1,
	}
}

func newTestRunner(store *fakeRuleStore, sink *fakeLedger, catchUpCap int, window time.Duration) *Runner {
	return NewRunner(store, sink, logging.SetupLogging(), catchUpCap, window)
}

func TestRunPass_ExactCardinality(t *testing.T) {
	rule := monthlyRule(utc(2024, time.January, 15))
	store := newFakeRuleStore(rule)
	sink := &fakeLedger{}
	runner := newTestRunner(store, sink, 366, 0)

	report, err := runner.RunPass(context.Background(), utc(2024, time.April, 20))
	require.NoError(t, err)

	assert.Equal(t, 1, report.RulesDue)
	assert.Equal(t, 4, report.Materialized)
	require.Len(t, sink.appended, 4)

	var dates []time.Time
	for _, tx := range sink.appended {
		dates = append(dates, tx.TransactionDate)
	}
	assert.Equal(t, []time.Time{
		utc(2024, time.January, 15),
		utc(2024, time.February, 15),
		utc(2024, time.March, 15),
		utc(2024, time.April, 15),
	}, dates)

	after := store.get(rule.ID)
	assert.Equal(t, utc(2024, time.May, 15), after.NextExecution)
	require.NotNil(t, after.LastMaterialized)
	assert.Equal(t, utc(2024, time.April, 15), *after.LastMaterialized)
	assert.Equal(t, int64(5), after.Version, "one version bump per occurrence")
}

func TestRunPass_Idempotent(t *testing.T) {
	rule := monthlyRule(utc(2024, time.January, 15))
	store := newFakeRuleStore(rule)
	sink := &fakeLedger{}
	runner := newTestRunner(store, sink, 366, 0)
	now := utc(2024, time.April, 20)

	_, err := runner.RunPass(context.Background(), now)
	require.NoError(t, err)
	first := sink.count()

	report, err := runner.RunPass(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, first, sink.count(), "second pass with no elapsed time appends nothing")
	assert.Equal(t, 0, report.RulesDue)
	assert.Equal(t, 0, report.Materialized)
}

func TestRunPass_MonthEndClamping(t *testing.T) {
	rule := monthlyRule(utc(2024, time.January, 31))
	store := newFakeRuleStore(rule)
	sink := &fakeLedger{}
	runner := newTestRunner(store, sink, 366, 0)

	_, err := runner.RunPass(context.Background(), utc(2024, time.May, 1))
	require.NoError(t, err)

	var dates []time.Time
	for _, tx := range sink.appended {
		dates = append(dates, tx.TransactionDate)
	}
	assert.Equal(t, []time.Time{
		utc(2024, time.January, 31),
		utc(2024, time.February, 29),
		utc(2024, time.March, 31),
		utc(2024, time.April, 30),
	}, dates)

	after := store.get(rule.ID)
	assert.Equal(t, utc(2024, time.May, 31), after.NextExecution, "clamp from anchor day, no drift")
}

func TestRunPass_EndDateBoundary(t *testing.T) {
	rule := monthlyRule(utc(2024, time.January, 15))
	end := utc(2024, time.March, 15)
	rule.EndDate = &end
	store := newFakeRuleStore(rule)
	sink := &fakeLedger{}
	runner := newTestRunner(store, sink, 366, 0)

	_, err := runner.RunPass(context.Background(), utc(2024, time.April, 20))
	require.NoError(t, err)

	// End date is inclusive: the 03-15 occurrence materializes, 04-15 does not.
	require.Len(t, sink.appended, 3)
	assert.Equal(t, utc(2024, time.March, 15), sink.appended[2].TransactionDate)

	after := store.get(rule.ID)
	assert.Equal(t, utc(2024, time.April, 15), after.NextExecution)
	assert.Equal(t, rulestore.StatusExpired, after.Status())

	// Expired rules are invisible to subsequent passes.
	report, err := runner.RunPass(context.Background(), utc(2024, time.December, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, report.RulesDue)
	assert.Equal(t, 3, sink.count())
}

func TestRunPass_PauseFreezesSchedule(t *testing.T) {
	rule := monthlyRule(utc(2024, time.January, 15))
	rule.IsActive = false
	store := newFakeRuleStore(rule)
	sink := &fakeLedger{}
	runner := newTestRunner(store, sink, 366, 0)

	_, err := runner.RunPass(context.Background(), utc(2024, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, sink.count())
	assert.Equal(t, utc(2024, time.January, 15), store.get(rule.ID).NextExecution, "frozen, not advanced")

	// Resume: catch-up picks up from the frozen point.
	require.NoError(t, store.SetActive(context.Background(), rule.ID, true))
	report, err := runner.RunPass(context.Background(), utc(2024, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Materialized)
	assert.Equal(t, utc(2024, time.January, 15), sink.appended[0].TransactionDate)
	assert.Equal(t, utc(2024, time.February, 15), sink.appended[1].TransactionDate)
}

func TestRunPass_CatchUpTruncation(t *testing.T) {
	rule := monthlyRule(utc(2024, time.January, 15))
	rule.Frequency = recurrence.Daily
	store := newFakeRuleStore(rule)
	sink := &fakeLedger{}
	runner := newTestRunner(store, sink, 5, 3*24*time.Hour)
	now := utc(2024, time.March, 1)

	report, err := runner.RunPass(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Materialized, "cap bounds work per rule per pass")
	require.Len(t, report.Truncations, 1)
	trunc := report.Truncations[0]
	assert.Equal(t, rule.ID, trunc.RuleID)

	// Resumes at the first occurrence inside the catch-up window.
	resumed := store.get(rule.ID).NextExecution
	assert.Equal(t, trunc.ResumedAt, resumed)
	assert.True(t, resumed.After(now.Add(-3*24*time.Hour)))
	assert.False(t, resumed.After(now))

	// Skipped = backlog between the last materialized point and the resume
	// point: Jan 15..19 materialized, resume at Feb 28, so Jan 20..Feb 27
	// are skipped.
	assert.Equal(t, 39, trunc.Skipped)

	// The rule keeps scheduling normally afterwards.
	report, err = runner.RunPass(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, report.Truncations)
	assert.Equal(t, 3, report.Materialized, "window backlog drains on the next pass")
}

func TestRunPass_SinkFailureSurfacedAndSkipped(t *testing.T) {
	rule := monthlyRule(utc(2024, time.January, 15))
	store := newFakeRuleStore(rule)
	sink := &fakeLedger{failuresRemaining: 1}
	runner := newTestRunner(store, sink, 366, 0)

	report, err := runner.RunPass(context.Background(), utc(2024, time.April, 20))
	require.NoError(t, err, "sink failure does not abort the pass")

	// The first occurrence is permanently skipped; the remaining three land.
	assert.Equal(t, 3, report.Materialized)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "sink", report.Errors[0].Stage)
	assert.Equal(t, rule.ID, report.Errors[0].RuleID)
	require.NotNil(t, report.Errors[0].Occurrence)
	assert.Equal(t, utc(2024, time.January, 15), *report.Errors[0].Occurrence)

	// The rule was advanced past the lost occurrence; a rerun does not
	// resurrect it.
	after := store.get(rule.ID)
	assert.Equal(t, utc(2024, time.May, 15), after.NextExecution)
}

func TestRunPass_ConflictReloadedAndRetried(t *testing.T) {
	rule := monthlyRule(utc(2024, time.January, 15))
	store := newFakeRuleStore(rule)
	store.conflictsRemaining = 1
	sink := &fakeLedger{}
	runner := newTestRunner(store, sink, 366, 0)

	report, err := runner.RunPass(context.Background(), utc(2024, time.February, 1))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Materialized, "single conflict is absorbed by reload+retry")
	assert.Empty(t, report.Errors)
}

func TestRunPass_PersistentConflictDefersRule(t *testing.T) {
	rule := monthlyRule(utc(2024, time.January, 15))
	store := newFakeRuleStore(rule)
	store.conflictsRemaining = 2
	sink := &fakeLedger{}
	runner := newTestRunner(store, sink, 366, 0)

	report, err := runner.RunPass(context.Background(), utc(2024, time.February, 1))
	require.NoError(t, err)

	// Retried once, then deferred. Never escalated as a pass error.
	assert.Equal(t, 0, report.Materialized)
	assert.Empty(t, report.Errors)
	assert.Equal(t, utc(2024, time.January, 15), store.get(rule.ID).NextExecution)
}

func TestRunPass_RuleFailureDoesNotAbortPass(t *testing.T) {
	broken := monthlyRule(utc(2024, time.January, 15))
	healthy := monthlyRule(utc(2024, time.January, 20))

	brokenStore := newFakeRuleStore(broken)
	brokenStore.advanceErr = errors.New("disk full")
	healthyStore := newFakeRuleStore(healthy)

	store := &splitStore{a: brokenStore, b: healthyStore, aID: broken.ID}
	sink := &fakeLedger{}
	runner := NewRunner(store, sink, logging.SetupLogging(), 366, 0)

	report, err := runner.RunPass(context.Background(), utc(2024, time.February, 1))
	require.NoError(t, err)

	require.Len(t, report.Errors, 1)
	assert.Equal(t, broken.ID, report.Errors[0].RuleID)
	assert.Equal(t, 1, report.Materialized, "healthy rule still materializes")
}

// splitStore routes one rule to a failing store and the rest to a healthy
// one, to exercise per-rule failure isolation.
type splitStore struct {
	a, b *fakeRuleStore
	aID  uuid.UUID
}

func (s *splitStore) LoadDueRules(ctx context.Context, now time.Time) ([]*rulestore.RecurringRule, error) {
	due, err := s.a.LoadDueRules(ctx, now)
	if err != nil {
		return nil, err
	}
	more, err := s.b.LoadDueRules(ctx, now)
	if err != nil {
		return nil, err
	}
	return append(due, more...), nil
}

func (s *splitStore) route(id uuid.UUID) *fakeRuleStore {
	if id == s.aID {
		return s.a
	}
	return s.b
}

func (s *splitStore) CommitAdvance(ctx context.Context, id uuid.UUID, v int64, n time.Time, l *time.Time) error {
	return s.route(id).CommitAdvance(ctx, id, v, n, l)
}

func (s *splitStore) FindByID(ctx context.Context, id uuid.UUID) (*rulestore.RecurringRule, error) {
	return s.route(id).FindByID(ctx, id)
}

func (s *splitStore) Insert(context.Context, *rulestore.RuleCreate) (uuid.UUID, error) {
	panic("not used")
}
func (s *splitStore) Update(context.Context, uuid.UUID, *rulestore.RuleUpdate) error { panic("not used") }
func (s *splitStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.route(id).SetActive(ctx, id, active)
}
func (s *splitStore) List(context.Context, *rulestore.RuleFilter) ([]*rulestore.RecurringRule, error) {
	panic("not used")
}
func (s *splitStore) Delete(context.Context, uuid.UUID) error { panic("not used") }

func TestMaterializer_PayloadContents(t *testing.T) {
	rule := monthlyRule(utc(2024, time.January, 15))
	rule.Note = "flat 4b"
	store := newFakeRuleStore(rule)
	sink := &fakeLedger{}
	mat := NewMaterializer(store, sink, logging.SetupLogging())

	appended, err := mat.MaterializeNext(context.Background(), store.get(rule.ID), utc(2024, time.January, 15))
	require.NoError(t, err)
	require.True(t, appended)

	require.Len(t, sink.appended, 1)
	tx := sink.appended[0]
	assert.Equal(t, rule.AccountID, tx.AccountID)
	assert.Equal(t, rule.CategoryID, tx.CategoryID)
	assert.Equal(t, "Rent", tx.TransactionName)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("-1200.00")), "expense in minor units, signed: got %s", tx.Amount)
	assert.Equal(t, utc(2024, time.January, 15), tx.TransactionDate)
	assert.Equal(t, "flat 4b", tx.Note)
	require.NotNil(t, tx.RuleID)
	assert.Equal(t, rule.ID, *tx.RuleID)
	assert.Equal(t, ProvenanceTag(rule.ID, utc(2024, time.January, 15)), tx.RequestTag)
}

func TestMaterializer_DefaultNoteAndIncomeSign(t *testing.T) {
	rule := monthlyRule(utc(2024, time.January, 15))
	rule.Name = "Salary"
	rule.Type = rulestore.RuleTypeIncome
	rule.AmountMinorUnits = 350050
	store := newFakeRuleStore(rule)
	sink := &fakeLedger{}
	mat := NewMaterializer(store, sink, logging.SetupLogging())

	_, err := mat.MaterializeNext(context.Background(), store.get(rule.ID), utc(2024, time.January, 15))
	require.NoError(t, err)

	tx := sink.appended[0]
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("3500.50")))
	assert.Equal(t, "Recurring: Salary", tx.Note)
}

func TestRunPass_CancelledBetweenRules(t *testing.T) {
	rule := monthlyRule(utc(2024, time.January, 15))
	store := newFakeRuleStore(rule)
	sink := &fakeLedger{}
	runner := newTestRunner(store, sink, 366, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := runner.RunPass(ctx, utc(2024, time.February, 1))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 0, report.Materialized, "no corruption: nothing half-done")
}

func TestProvenanceTag_Deterministic(t *testing.T) {
	id := uuid.Must(uuid.FromString("7c9e6679-7425-40de-944b-e07fc1f90ae7"))
	at := utc(2024, time.March, 31)
	assert.Equal(t, "rule/7c9e6679-7425-40de-944b-e07fc1f90ae7/occ/2024-03-31T00:00:00Z", ProvenanceTag(id, at))
	assert.Equal(t, ProvenanceTag(id, at), ProvenanceTag(id, at))
}
