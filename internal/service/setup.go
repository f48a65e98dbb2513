package service

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/balkashynov/hangar/internal/config"
	"github.com/balkashynov/hangar/internal/db"
	"github.com/balkashynov/hangar/internal/engine"
	"github.com/balkashynov/hangar/internal/evidence"
	"github.com/balkashynov/hangar/internal/ledger"
)

// FromConfig wires a Service over an open database using cfg's policy and
// evidence settings.
func FromConfig(conn *gorm.DB, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	eng, err := engine.New(engine.Opts{
		Ledger: ledger.New(db.NewEventStore(conn)),
		Config: engine.Config{SingleGlobalSession: cfg.Policy.SingleGlobalSession},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	store, err := evidence.NewDirStore(cfg.Evidence.Dir, cfg.Evidence.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	return New(conn, eng, store, logger), nil
}
