package main

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/erc7824/nitrolite/hwbridge/pkg/bridge"
)

// CommandRecord is the audit record of one processed command line. Lines that
// could not be parsed are recorded with an empty Command.
type CommandRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	RequestID  string         `gorm:"column:request_id;type:varchar(36);not null;uniqueIndex" json:"request_id"`
	Command    string         `gorm:"column:command;type:varchar(64);not null;index" json:"command"`
	Success    bool           `gorm:"column:success;not null" json:"success"`
	Error      string         `gorm:"column:error;type:text" json:"error,omitempty"`
	Message    string         `gorm:"column:message;type:text" json:"message,omitempty"`
	Params     datatypes.JSON `gorm:"column:params;type:text;not null;default:'{}'" json:"params"`
	DurationMs int64          `gorm:"column:duration_ms;not null" json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"column:created_at;index" json:"created_at"`
}

// auditedParams lists the command properties kept in CommandRecord.Params.
var auditedParams = []string{"path", "coin", "showOnTrezor"}

func (CommandRecord) TableName() string {
	return "command_logs"
}

// CommandLogStore persists the command audit trail: command names, outcomes
// and the path, coin and showOnTrezor properties. Key material and addresses
// are never stored.
type CommandLogStore struct {
	db *gorm.DB
}

func NewCommandLogStore(db *gorm.DB) *CommandLogStore {
	return &CommandLogStore{db: db}
}

// Store saves the record of a processed command.
func (s *CommandLogStore) Store(ctx context.Context, event bridge.CommandEvent) error {
	record := &CommandRecord{
		RequestID:  event.RequestID,
		Command:    event.Command,
		Success:    event.Success,
		Error:      event.Error,
		Message:    event.Message,
		Params:     auditParams(event.Params),
		DurationMs: event.Duration.Milliseconds(),
		CreatedAt:  event.StartedAt,
	}
	return s.db.WithContext(ctx).Create(record).Error
}

// List returns records, newest first unless options say otherwise,
// optionally filtered by command name.
func (s *CommandLogStore) List(ctx context.Context, command *string, options *ListOptions) ([]CommandRecord, error) {
	query := applyListOptions(s.db.WithContext(ctx), "created_at", SortTypeDescending, options)
	if command != nil {
		query = query.Where("command = ?", *command)
	}

	var records []CommandRecord
	err := query.Find(&records).Error
	return records, err
}

// Count returns the number of records, optionally filtered by command name.
func (s *CommandLogStore) Count(ctx context.Context, command *string) (int64, error) {
	query := s.db.WithContext(ctx).Model(&CommandRecord{})
	if command != nil {
		query = query.Where("command = ?", *command)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

// auditParams keeps the audited properties of a command object. It returns an
// empty object when the line did not parse.
func auditParams(raw json.RawMessage) datatypes.JSON {
	empty := datatypes.JSON("{}")
	if len(raw) == 0 {
		return empty
	}

	var props map[string]json.RawMessage
	if err := json.Unmarshal(raw, &props); err != nil {
		return empty
	}

	kept := make(map[string]json.RawMessage, len(auditedParams))
	for _, name := range auditedParams {
		if v, ok := props[name]; ok {
			kept[name] = v
		}
	}
	data, err := json.Marshal(kept)
	if err != nil {
		return empty
	}
	return datatypes.JSON(data)
}
