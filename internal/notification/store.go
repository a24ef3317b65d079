package notification

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tradewell/exchange-core/pkg/models"
)

// StoreSink records notifications in the database.
type StoreSink struct {
	db *gorm.DB
}

// NewStoreSink creates a database-backed notification sink.
func NewStoreSink(db *gorm.DB) *StoreSink {
	return &StoreSink{db: db}
}

func (s *StoreSink) NotifyFilled(ctx context.Context, fill Fill) (*models.Notification, error) {
	n := newNotification(fill)
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("failed to record notification: %w", err)
	}
	return n, nil
}
