package service

import (
	"github.com/carson-networks/recurring-server/internal/clock"
	"github.com/carson-networks/recurring-server/internal/storage"
)

// Service holds all business logic services.
type Service struct {
	Rule *RuleService
}

// NewService creates a new Service with the given storage. notify, when
// non-nil, is called after writes that can make a rule immediately due, so
// the scheduler loop picks it up without waiting for the next tick.
func NewService(store *storage.Storage, clk clock.Clock, notify func()) *Service {
	return &Service{
		Rule: NewRuleService(store, clk, notify),
	}
}
