package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/recurring-server/internal/clock"
	"github.com/carson-networks/recurring-server/internal/recurrence"
	"github.com/carson-networks/recurring-server/internal/storage"
	"github.com/carson-networks/recurring-server/internal/storage/rulestore"
)

const defaultLimit = 20

// maxUpcoming bounds the occurrence preview.
const maxUpcoming = 60

// RuleService handles recurring-rule authoring. Schedule advancement is the
// engine's job; this service only seeds and re-seeds NextExecution when the
// schedule shape is defined or edited.
type RuleService struct {
	storage *storage.Storage
	clock   clock.Clock
	notify  func()
}

func NewRuleService(store *storage.Storage, clk clock.Clock, notify func()) *RuleService {
	return &RuleService{storage: store, clock: clk, notify: notify}
}

// CreateRule validates and persists a new rule and returns its ID. The
// rule's first occurrence is the anchor itself when the anchor is in the
// future, otherwise the first occurrence not before now, so backdated
// anchors do not flood the ledger with history.
func (s *RuleService) CreateRule(ctx context.Context, create CreateRule) (uuid.UUID, error) {
	if err := validateShape(create.Name, create.AmountMinorUnits, create.Frequency, create.Interval); err != nil {
		return uuid.Nil, err
	}
	if create.CategoryID == uuid.Nil || create.AccountID == uuid.Nil {
		return uuid.Nil, errors.New("categoryID and accountID are required")
	}
	if create.AnchorDate.IsZero() {
		return uuid.Nil, errors.New("anchorDate is required")
	}
	if create.EndDate != nil && create.EndDate.Before(create.AnchorDate) {
		return uuid.Nil, errors.New("endDate must not precede anchorDate")
	}

	now := s.clock.Now()
	next := seedNextExecution(create.AnchorDate, create.Frequency, create.Interval, now)

	id, err := s.storage.Rules.Insert(ctx, &rulestore.RuleCreate{
		Name:             create.Name,
		AmountMinorUnits: create.AmountMinorUnits,
		CategoryID:       create.CategoryID,
		AccountID:        create.AccountID,
		Type:             create.Type,
		Frequency:        create.Frequency,
		Interval:         create.Interval,
		AnchorDate:       create.AnchorDate,
		EndDate:          create.EndDate,
		Note:             create.Note,
		NextExecution:    next,
	})
	if err != nil {
		return uuid.Nil, err
	}

	if s.notify != nil {
		s.notify()
	}
	return id, nil
}

func (s *RuleService) GetRule(ctx context.Context, id uuid.UUID) (*Rule, error) {
	stored, err := s.storage.Rules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toServiceRule(stored), nil
}

// ListRules returns a page of rules using cursor-based pagination.
func (s *RuleService) ListRules(ctx context.Context, cursor *RuleCursor) ([]Rule, *RuleCursor, error) {
	limit := defaultLimit
	offset := 0
	if cursor != nil {
		limit = cursor.Limit
		offset = cursor.Position
	}

	rows, err := s.storage.Rules.List(ctx, &rulestore.RuleFilter{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	var nextCursor *RuleCursor
	if len(rows) > limit {
		rows = rows[:limit]
		nextCursor = &RuleCursor{
			Position: offset + limit,
			Limit:    limit,
		}
	}

	converted := make([]Rule, len(rows))
	for i, row := range rows {
		converted[i] = *toServiceRule(row)
	}
	return converted, nextCursor, nil
}

// UpdateRule applies a partial edit. Edits to the schedule shape
// (frequency, interval, anchor) re-seed NextExecution the same way
// CreateRule does.
func (s *RuleService) UpdateRule(ctx context.Context, id uuid.UUID, update UpdateRule) (*Rule, error) {
	stored, err := s.storage.Rules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name := orElse(update.Name, stored.Name)
	amount := orElse(update.AmountMinorUnits, stored.AmountMinorUnits)
	freq := orElse(update.Frequency, stored.Frequency)
	interval := orElse(update.Interval, stored.Interval)
	anchor := orElse(update.AnchorDate, stored.AnchorDate)
	if err := validateShape(name, amount, freq, interval); err != nil {
		return nil, err
	}

	endDate := stored.EndDate
	if update.EndDate.IsValue() {
		v := update.EndDate.GetOrZero()
		endDate = &v
	} else if update.EndDate.IsNull() {
		endDate = nil
	}
	if endDate != nil && endDate.Before(anchor) {
		return nil, errors.New("endDate must not precede anchorDate")
	}

	storeUpdate := &rulestore.RuleUpdate{
		Name:             update.Name,
		AmountMinorUnits: update.AmountMinorUnits,
		CategoryID:       update.CategoryID,
		AccountID:        update.AccountID,
		Type:             update.Type,
		Frequency:        update.Frequency,
		Interval:         update.Interval,
		AnchorDate:       update.AnchorDate,
		EndDate:          update.EndDate,
		Note:             update.Note,
	}

	if update.Frequency.IsValue() || update.Interval.IsValue() || update.AnchorDate.IsValue() {
		storeUpdate.NextExecution = omit.From(seedNextExecution(anchor, freq, interval, s.clock.Now()))
	}

	if err := s.storage.Rules.Update(ctx, id, storeUpdate); err != nil {
		return nil, err
	}

	if s.notify != nil {
		s.notify()
	}
	return s.GetRule(ctx, id)
}

// PauseRule freezes the rule: its schedule state is preserved, not advanced.
func (s *RuleService) PauseRule(ctx context.Context, id uuid.UUID) error {
	return s.storage.Rules.SetActive(ctx, id, false)
}

// ResumeRule reactivates the rule at its frozen NextExecution; overdue
// occurrences catch up on the next pass, subject to the catch-up cap.
func (s *RuleService) ResumeRule(ctx context.Context, id uuid.UUID) error {
	if err := s.storage.Rules.SetActive(ctx, id, true); err != nil {
		return err
	}
	if s.notify != nil {
		s.notify()
	}
	return nil
}

func (s *RuleService) DeleteRule(ctx context.Context, id uuid.UUID) error {
	return s.storage.Rules.Delete(ctx, id)
}

// UpcomingOccurrences previews the next count occurrence instants starting
// at the rule's pending NextExecution, honoring the end date.
func (s *RuleService) UpcomingOccurrences(ctx context.Context, id uuid.UUID, count int) ([]time.Time, error) {
	if count < 1 {
		count = 1
	}
	if count > maxUpcoming {
		count = maxUpcoming
	}

	rule, err := s.storage.Rules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	k := recurrence.IndexAfter(rule.AnchorDate, rule.Frequency, rule.Interval,
		rule.NextExecution.Add(-time.Nanosecond))
	occurrences := make([]time.Time, 0, count)
	for len(occurrences) < count {
		occ := recurrence.Occurrence(rule.AnchorDate, rule.Frequency, rule.Interval, k)
		if rule.EndDate != nil && occ.After(*rule.EndDate) {
			break
		}
		occurrences = append(occurrences, occ)
		k++
	}
	return occurrences, nil
}

func orElse[T any](v omit.Val[T], fallback T) T {
	if v.IsValue() {
		return v.GetOrZero()
	}
	return fallback
}

func validateShape(name string, amountMinorUnits int64, freq recurrence.Frequency, interval int) error {
	if name == "" {
		return errors.New("name must not be empty")
	}
	if amountMinorUnits <= 0 {
		return errors.New("amountMinorUnits must be positive")
	}
	if !freq.Valid() {
		return fmt.Errorf("invalid frequency %q", freq)
	}
	if interval < 1 {
		return fmt.Errorf("interval must be >= 1, got %d", interval)
	}
	return nil
}

// seedNextExecution picks the first pending occurrence for a new or
// re-shaped rule: the anchor itself when it lies in the future, otherwise
// the first occurrence not before now.
func seedNextExecution(anchor time.Time, freq recurrence.Frequency, interval int, now time.Time) time.Time {
	if !anchor.Before(now) {
		return anchor
	}
	return recurrence.Next(anchor, freq, interval, now.Add(-time.Nanosecond))
}

func toServiceRule(stored *rulestore.RecurringRule) *Rule {
	rrule, err := recurrence.RRuleString(stored.AnchorDate, stored.Frequency, stored.Interval, stored.EndDate)
	if err != nil {
		// Rendering is cosmetic; a rule with an unrenderable schedule still
		// lists.
		rrule = ""
	}
	return &Rule{
		ID:               stored.ID,
		Name:             stored.Name,
		AmountMinorUnits: stored.AmountMinorUnits,
		CategoryID:       stored.CategoryID,
		AccountID:        stored.AccountID,
		Type:             stored.Type,
		Frequency:        stored.Frequency,
		Interval:         stored.Interval,
		AnchorDate:       stored.AnchorDate,
		EndDate:          stored.EndDate,
		Note:             stored.Note,
		Status:           stored.Status(),
		Schedule:         recurrence.Describe(stored.Frequency, stored.Interval, stored.EndDate),
		RRule:            rrule,
		NextExecution:    stored.NextExecution,
		LastMaterialized: stored.LastMaterialized,
		CreatedAt:        stored.CreatedAt,
	}
}
