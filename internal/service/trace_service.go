package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"budstack-service/internal/clock"
	"budstack-service/internal/model"

	"go.uber.org/zap"
)

// TraceInput records one supply chain step
type TraceInput struct {
	Stage      string     `json:"stage"`
	Location   string     `json:"location"`
	Details    string     `json:"details"`
	RecordedAt *time.Time `json:"recorded_at"`
}

// ProductTrace is a product's chain with its verification result
type ProductTrace struct {
	ProductID    uint                    `json:"product_id"`
	Events       []model.TraceEvent      `json:"events"`
	Verification model.TraceVerification `json:"verification"`
}

type TraceService struct {
	traces   TraceStore
	products ProductStore
	clock    clock.Clock
	logger   *zap.Logger
}

func NewTraceService(traces TraceStore, products ProductStore, clk clock.Clock, logger *zap.Logger) *TraceService {
	return &TraceService{traces: traces, products: products, clock: clk, logger: logger}
}

// Append links a new event to the end of the product's chain
func (s *TraceService) Append(ctx context.Context, tenantID, productID uint, input TraceInput) (*model.TraceEvent, error) {
	stage := strings.ToLower(strings.TrimSpace(input.Stage))
	stageIdx := model.StageIndex(stage)
	if stageIdx < 0 {
		return nil, model.NewValidationError("stage", "must be one of "+strings.Join(model.TraceStages, ", "))
	}
	if err := requireLength("location", input.Location, 0, 255); err != nil {
		return nil, err
	}

	recordedAt := s.clock.Now()
	if input.RecordedAt != nil {
		recordedAt = *input.RecordedAt
	}
	// stored with microsecond precision, hash what will be read back
	recordedAt = recordedAt.UTC().Truncate(time.Microsecond)

	event, err := s.traces.Append(ctx, tenantID, productID, func(last *model.TraceEvent) (*model.TraceEvent, error) {
		next := &model.TraceEvent{
			TenantID:   tenantID,
			ProductID:  productID,
			Sequence:   1,
			Stage:      stage,
			Location:   strings.TrimSpace(input.Location),
			Details:    strings.TrimSpace(input.Details),
			RecordedAt: recordedAt,
			PrevHash:   model.GenesisHash,
		}
		if last != nil {
			if stageIdx < model.StageIndex(last.Stage) {
				return nil, model.NewValidationError("stage", fmt.Sprintf("%s cannot follow %s", stage, last.Stage))
			}
			next.Sequence = last.Sequence + 1
			next.PrevHash = last.Hash
		}
		next.Hash = HashEvent(next)
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Trace event recorded",
		zap.Uint("product_id", productID),
		zap.Int("sequence", event.Sequence),
		zap.String("stage", event.Stage))
	return event, nil
}

// Trace returns the chain of one product of the tenant
func (s *TraceService) Trace(ctx context.Context, tenantID, productID uint) (*ProductTrace, error) {
	if _, err := s.products.GetByID(ctx, tenantID, productID); err != nil {
		return nil, err
	}
	events, err := s.traces.ListByProduct(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	return &ProductTrace{ProductID: productID, Events: events, Verification: VerifyChain(events)}, nil
}

// Verify re-hashes the product's chain
func (s *TraceService) Verify(ctx context.Context, tenantID, productID uint) (*model.TraceVerification, error) {
	trace, err := s.Trace(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	return &trace.Verification, nil
}

// HashEvent is hex(SHA-256) over the pipe-joined chain fields of the event
func HashEvent(e *model.TraceEvent) string {
	payload := strings.Join([]string{
		e.PrevHash,
		strconv.FormatUint(uint64(e.ProductID), 10),
		strconv.Itoa(e.Sequence),
		e.Stage,
		e.Location,
		e.Details,
		e.RecordedAt.UTC().Format(time.RFC3339Nano),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// VerifyChain checks sequence numbers, links and hashes of events given in sequence order.
// BrokenAt is the sequence of the first event that fails.
func VerifyChain(events []model.TraceEvent) model.TraceVerification {
	result := model.TraceVerification{Verified: true, Events: len(events)}
	prev := model.GenesisHash
	for i := range events {
		e := &events[i]
		if e.Sequence != i+1 || e.PrevHash != prev || HashEvent(e) != e.Hash {
			broken := e.Sequence
			result.Verified = false
			result.BrokenAt = &broken
			return result
		}
		prev = e.Hash
	}
	return result
}
