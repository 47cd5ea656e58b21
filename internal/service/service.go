package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/mmeshcher/macd-cancel/internal/models"
	"github.com/mmeshcher/macd-cancel/internal/repository"
	"github.com/mmeshcher/macd-cancel/internal/tracer"
)

type CancellationService struct {
	opener repository.Opener
	logger *zap.Logger
}

func NewCancellationService(opener repository.Opener, logger *zap.Logger) *CancellationService {
	return &CancellationService{
		opener: opener,
		logger: logger,
	}
}

// Process cancels the posted MACD requests of the given subscriptions inside
// one transaction. In test mode every change is rolled back; the result still
// reports the row counts the updates touched.
func (s *CancellationService) Process(ctx context.Context, profile models.DatabaseProfile, orgID string,
	subscriptionIDs []string, testMode bool) (result models.CancellationResult, err error) {
	ctx, span := tracer.Start(ctx, "CancellationService.Process")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(
		attribute.String("org_id", orgID),
		attribute.Int("subscriptions", len(subscriptionIDs)),
		attribute.Bool("test_mode", testMode),
	)

	schema, err := repository.TenantSchema(orgID)
	if err != nil {
		return result, err
	}

	session, err := s.opener.Open(ctx, profile)
	if err != nil {
		s.logger.Error("Failed to open database session", zap.String("host", profile.Host), zap.Error(err))
		return result, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := session.Rollback(ctx); rbErr != nil {
				s.logger.Error("Rollback failed", zap.Error(rbErr))
			}
		}
		if closeErr := session.Close(ctx); closeErr != nil {
			s.logger.Warn("Failed to close database session", zap.Error(closeErr))
		}
	}()

	s.logger.Info("Querying MACD requests",
		zap.String("schema", schema),
		zap.Int("subscription_patterns", len(subscriptionIDs)))

	records, err := session.FindMacdRequests(ctx, schema, subscriptionIDs)
	if err != nil {
		s.logger.Error("Database operation failed", zap.Error(err))
		return result, err
	}
	result.TotalFound = int64(len(records))

	for _, record := range records {
		if record.Status == models.StatusPosted {
			result.MacdRecords = append(result.MacdRecords, record)
			continue
		}
		result.SkippedRecords = append(result.SkippedRecords, record)
		result.SkippedWrongStatus++
		s.logger.Warn("Skipping MACD request with unexpected status",
			zap.String("macd_id", record.ID),
			zap.String("status", record.Status))
	}
	result.EligibleCount = int64(len(result.MacdRecords))

	s.logger.Info("MACD requests found",
		zap.Int64("total", result.TotalFound),
		zap.Int64("eligible", result.EligibleCount),
		zap.Int64("skipped", result.SkippedWrongStatus))

	if result.EligibleCount == 0 {
		return result, nil
	}

	var basketIDs, macdIDs []string
	for _, record := range result.MacdRecords {
		basketIDs = appendUnique(basketIDs, record.BasketID)
		macdIDs = appendUnique(macdIDs, record.ID)
	}
	result.UpdatedBasketIDs = basketIDs
	result.UpdatedMacdIDs = macdIDs

	// order_request first, macd_request second, same transaction.
	if len(basketIDs) > 0 {
		result.OrderRequestsUpdated, err = session.UpdateOrderRequestStatus(ctx, schema, basketIDs, models.OrderRequestCancelledStatus)
		if err != nil {
			s.logger.Error("Database operation failed", zap.Error(err))
			return result, err
		}
		s.logger.Info("Order requests updated",
			zap.Int("basket_ids", len(basketIDs)),
			zap.Int64("rows", result.OrderRequestsUpdated))
	}

	if len(macdIDs) > 0 {
		result.MacdRequestsUpdated, err = session.UpdateMacdRequestStatus(ctx, schema, macdIDs, models.MacdRequestCancelledStatus)
		if err != nil {
			s.logger.Error("Database operation failed", zap.Error(err))
			return result, err
		}
		s.logger.Info("MACD requests updated",
			zap.Int("macd_ids", len(macdIDs)),
			zap.Int64("rows", result.MacdRequestsUpdated))
	}

	if testMode {
		if err = session.Rollback(ctx); err != nil {
			return result, err
		}
		s.logger.Info("Test mode: all changes rolled back")
		return result, nil
	}

	if err = session.Commit(ctx); err != nil {
		return result, err
	}
	result.Committed = true
	s.logger.Info("Production mode: all changes committed")

	return result, nil
}

// appendUnique appends non-empty id unless already present, keeping first
// occurrence order.
func appendUnique(ids []string, id string) []string {
	if id == "" {
		return ids
	}
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
