package timesheet

import (
	"go.uber.org/zap"
)

// Dependencies are the collaborators of an Engine. Config is used as
// given; pass DefaultConfig() or a loaded one. When References is empty
// and the store provides ReferenceCheckers, the store's checkers are used.
type Dependencies struct {
	Config     Config
	Clock      Clock
	Logger     *zap.Logger
	Holidays   HolidayLookup
	References ReferenceCheckers
	NewID      func() EntryID
}

// Engine wires every component to one Store. Build one per transaction:
//
//	err := tx.WithTx(ctx, func(s timesheet.Store) error {
//	    eng := timesheet.NewEngine(s, deps)
//	    _, err := eng.Entries.Create(ctx, input)
//	    return err
//	})
type Engine struct {
	Profiles   *ProfileService
	Factory    *EntryFactory
	Validator  *Validator
	Entries    *EntryService
	Status     *StatusMachine
	Generation *GenerationEngine
	Balances   *BalanceAggregator
}

// NewEngine builds the components on top of store.
func NewEngine(store Store, deps Dependencies) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	profiles := &ProfileService{Users: store, Config: deps.Config, Logger: logger}
	factory := &EntryFactory{
		Expected: profiles,
		Config:   deps.Config,
		Clock:    deps.Clock,
		NewID:    deps.NewID,
	}
	refs := deps.References
	if rp, ok := store.(ReferenceProvider); ok && refs.empty() {
		refs = rp.ReferenceCheckers()
	}
	validator := NewValidator(store, refs)

	return &Engine{
		Profiles:  profiles,
		Factory:   factory,
		Validator: validator,
		Entries: &EntryService{
			Store:     store,
			Validator: validator,
			Factory:   factory,
			Clock:     deps.Clock,
			Logger:    logger,
		},
		Status: &StatusMachine{Store: store, Logger: logger},
		Generation: &GenerationEngine{
			Store:    store,
			Factory:  factory,
			Expected: profiles,
			Holidays: deps.Holidays,
			Config:   deps.Config,
			Clock:    deps.Clock,
			Logger:   logger,
		},
		Balances: &BalanceAggregator{Store: store, Config: deps.Config, Clock: deps.Clock},
	}
}

// ReferenceProvider is implemented by stores that hold reference master data.
type ReferenceProvider interface {
	ReferenceCheckers() ReferenceCheckers
}

func (r ReferenceCheckers) empty() bool {
	return r.Projects == nil && r.Activities == nil && r.WorkLocations == nil && r.TravelTypes == nil
}
