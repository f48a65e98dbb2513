package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/balkashynov/hangar/internal/models"
)

// EventStore keeps the man-hour ledger in the session_events table. Rows are
// only ever inserted.
type EventStore struct {
	db *gorm.DB
}

// NewEventStore returns an EventStore backed by conn
func NewEventStore(conn *gorm.DB) *EventStore {
	return &EventStore{db: conn}
}

func (s *EventStore) Append(ev *models.SessionEvent) error {
	ev.ID = 0
	if err := s.db.Create(ev).Error; err != nil {
		return fmt.Errorf("db: append %s event for %s: %w", ev.Kind, ev.FindingID, err)
	}
	return nil
}

func (s *EventStore) Events(findingID string) ([]models.SessionEvent, error) {
	var events []models.SessionEvent
	err := s.db.Where("finding_id = ?", findingID).
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("db: events for %s: %w", findingID, err)
	}
	return events, nil
}

func (s *EventStore) All() ([]models.SessionEvent, error) {
	var events []models.SessionEvent
	if err := s.db.Order("id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("db: all events: %w", err)
	}
	return events, nil
}

func (s *EventStore) LastID(findingID string) (uint, error) {
	var last uint
	err := s.db.Model(&models.SessionEvent{}).
		Where("finding_id = ?", findingID).
		Select("COALESCE(MAX(id), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, fmt.Errorf("db: last event for %s: %w", findingID, err)
	}
	return last, nil
}
