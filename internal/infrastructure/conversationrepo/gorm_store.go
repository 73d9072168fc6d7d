// Package conversationrepo persists conversations in a SQLite file via
// gorm. It is the durable alternative to the in-memory store; both sit
// behind the conversation.Store contract. The dataset database stays
// untouched: conversations live in their own writable file.
package conversationrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lumohq/ops-assistant/internal/domain/conversation"
)

type conversationRow struct {
	ID          string `gorm:"primaryKey"`
	CreatedAt   time.Time
	LastMessage time.Time
	Messages    []messageRow `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

func (conversationRow) TableName() string { return "conversations" }

type messageRow struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	ConversationID string `gorm:"index"`
	Role           string
	Content        *string
	ToolCallID     string
	// Invocations and Records hold JSON-encoded slices; SQLite has no
	// native array type and the payloads are opaque to queries.
	Invocations string
	Records     string
	Timestamp   time.Time
}

func (messageRow) TableName() string { return "messages" }

type GormStore struct {
	db *gorm.DB
}

var _ conversation.Store = (*GormStore)(nil)

// Open opens (creating if needed) the conversation database at path and
// migrates the schema.
func Open(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open conversation store %q: %w", path, err)
	}
	if err := db.AutoMigrate(&conversationRow{}, &messageRow{}); err != nil {
		return nil, fmt.Errorf("migrate conversation store: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Create(ctx context.Context, conv *conversation.Conversation) error {
	row := conversationRow{
		ID:          conv.ID,
		CreatedAt:   conv.CreatedAt,
		LastMessage: conv.LastMessage,
	}
	for _, msg := range conv.Messages {
		mr, err := toRow(conv.ID, msg)
		if err != nil {
			return err
		}
		row.Messages = append(row.Messages, mr)
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (s *GormStore) List(ctx context.Context) ([]conversation.Summary, error) {
	var rows []conversationRow
	if err := s.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	summaries := make([]conversation.Summary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, conversation.Summary{
			ID:          row.ID,
			CreatedAt:   row.CreatedAt,
			LastMessage: row.LastMessage,
		})
	}
	return summaries, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*conversation.Conversation, error) {
	var row conversationRow
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	conv := &conversation.Conversation{
		ID:          row.ID,
		CreatedAt:   row.CreatedAt,
		LastMessage: row.LastMessage,
	}
	for _, mr := range row.Messages {
		msg, err := fromRow(mr)
		if err != nil {
			return nil, err
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Select("Messages").Delete(&conversationRow{ID: id})
	if result.Error != nil {
		return fmt.Errorf("delete conversation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return conversation.ErrNotFound
	}
	return nil
}

func (s *GormStore) AppendMessage(ctx context.Context, id string, msg conversation.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row conversationRow
		err := tx.First(&row, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("append message: %w", err)
		}

		mr, err := toRow(id, msg)
		if err != nil {
			return err
		}
		if err := tx.Create(&mr).Error; err != nil {
			return fmt.Errorf("append message: %w", err)
		}
		return tx.Model(&row).Update("last_message", msg.Timestamp).Error
	})
}

func toRow(convID string, msg conversation.Message) (messageRow, error) {
	row := messageRow{
		ConversationID: convID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		ToolCallID:     msg.ToolCallID,
		Timestamp:      msg.Timestamp,
	}
	if len(msg.Invocations) > 0 {
		raw, err := json.Marshal(msg.Invocations)
		if err != nil {
			return messageRow{}, fmt.Errorf("encode invocations: %w", err)
		}
		row.Invocations = string(raw)
	}
	if len(msg.Records) > 0 {
		raw, err := json.Marshal(msg.Records)
		if err != nil {
			return messageRow{}, fmt.Errorf("encode tool records: %w", err)
		}
		row.Records = string(raw)
	}
	return row, nil
}

func fromRow(row messageRow) (conversation.Message, error) {
	msg := conversation.Message{
		Role:       conversation.Role(row.Role),
		Content:    row.Content,
		ToolCallID: row.ToolCallID,
		Timestamp:  row.Timestamp,
	}
	if row.Invocations != "" {
		if err := json.Unmarshal([]byte(row.Invocations), &msg.Invocations); err != nil {
			return conversation.Message{}, fmt.Errorf("decode invocations: %w", err)
		}
	}
	if row.Records != "" {
		if err := json.Unmarshal([]byte(row.Records), &msg.Records); err != nil {
			return conversation.Message{}, fmt.Errorf("decode tool records: %w", err)
		}
	}
	return msg, nil
}
