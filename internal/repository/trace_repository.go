package repository

import (
	"context"

	"budstack-service/internal/model"
	"budstack-service/prometheus"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TraceRepository struct {
	db *gorm.DB
}

func NewTraceRepository(db *gorm.DB) *TraceRepository {
	return &TraceRepository{db: db}
}

// Append locks the product row so concurrent appends serialise, then inserts the event next
// builds from the current chain head (nil for an empty chain)
func (r *TraceRepository) Append(ctx context.Context, tenantID, productID uint,
	next func(last *model.TraceEvent) (*model.TraceEvent, error)) (*model.TraceEvent, error) {
	defer prometheus.TrackDBOperation("trace_append")()

	var event *model.TraceEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product model.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ?", tenantID).First(&product, productID).Error; err != nil {
			return err
		}

		var last *model.TraceEvent
		var head model.TraceEvent
		result := tx.Where("product_id = ?", productID).Order("sequence DESC").Limit(1).Find(&head)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			last = &head
		}

		built, err := next(last)
		if err != nil {
			return err
		}
		if err := tx.Create(built).Error; err != nil {
			return err
		}
		event = built
		return nil
	})
	if err != nil {
		return nil, translateError(err)
	}
	return event, nil
}

// ListByProduct returns the chain of a product in sequence order
func (r *TraceRepository) ListByProduct(ctx context.Context, tenantID, productID uint) ([]model.TraceEvent, error) {
	defer prometheus.TrackDBOperation("trace_list")()

	events := []model.TraceEvent{}
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Order("sequence").Find(&events).Error
	return events, translateError(err)
}
