package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mmeshcher/macd-cancel/internal/models"
	"github.com/mmeshcher/macd-cancel/internal/normalize"
	"github.com/mmeshcher/macd-cancel/internal/parameters"
	"github.com/mmeshcher/macd-cancel/internal/report"
	"github.com/mmeshcher/macd-cancel/internal/service"
	"github.com/mmeshcher/macd-cancel/internal/ticketing"
	"github.com/mmeshcher/macd-cancel/internal/tracer"
)

type ParameterStore interface {
	Get(ctx context.Context) (*parameters.Parameters, error)
}

type Processor interface {
	Process(ctx context.Context, profile models.DatabaseProfile, orgID string,
		subscriptionIDs []string, testMode bool) (models.CancellationResult, error)
}

type Notifier interface {
	WriteInternalNote(ctx context.Context, ticketID, text string) ticketing.Outcome
}

// NotifierFactory builds a notifier from the loaded parameters, which carry
// the ticketing credentials.
type NotifierFactory func(ctx context.Context, params *parameters.Parameters) Notifier

type Handler struct {
	params    ParameterStore
	processor Processor
	notifiers NotifierFactory
	logger    *zap.Logger
}

func NewHandler(params ParameterStore, processor Processor, notifiers NotifierFactory, logger *zap.Logger) *Handler {
	return &Handler{
		params:    params,
		processor: processor,
		notifiers: notifiers,
		logger:    logger,
	}
}

// Handle runs one cancellation invocation. It always returns a response;
// failures are reported through the status code and message.
func (h *Handler) Handle(ctx context.Context, event models.Event) (resp models.Response) {
	log := h.logger.With(zap.String("invocation_id", uuid.NewString()))

	ctx, span := tracer.Start(ctx, "Handler.Handle")
	defer func() {
		span.SetAttributes(attribute.Int("status_code", resp.StatusCode))
		span.End()
	}()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Unhandled panic", zap.Any("panic", r), zap.Stack("stack"))
			resp = messageResponse(http.StatusInternalServerError, fmt.Sprintf("Lambda execution error: %v", r))
		}
	}()

	params, err := h.params.Get(ctx)
	if err != nil {
		log.Error("Failed to load parameters", zap.Error(err))
		return messageResponse(http.StatusInternalServerError, "Lambda execution error: "+err.Error())
	}

	body, err := decodeBody(event.Body)
	if err != nil {
		log.Warn("Invalid request body", zap.Error(err))
		return messageResponse(http.StatusBadRequest, "Invalid JSON: "+err.Error())
	}

	orgID := normalize.String(body["org_id"])
	subscriptionIDs := normalize.Strings(normalize.List(body["subscriptions"]))
	region := normalize.String(body["region"])
	caseID := normalize.String(body["case_id"])
	testMode := normalize.Bool(body["test"]) || normalize.Bool(event.QueryStringParameters["test_mode"])

	if errs := service.ValidateInputs(orgID, subscriptionIDs, region, caseID); len(errs) > 0 {
		msg := "Validation errors: " + strings.Join(errs, "; ")
		log.Warn("Validation failed", zap.Strings("errors", errs))
		return messageResponse(http.StatusBadRequest, msg)
	}

	log = log.With(zap.String("org_id", orgID), zap.String("case_id", caseID))
	log.Info("Processing MACD request cancellation",
		zap.Strings("subscriptions", subscriptionIDs),
		zap.String("region", region),
		zap.Bool("test_mode", testMode))
	if slices.Contains(subscriptionIDs, "") {
		log.Warn("Empty subscription id matches every subscription of the tenant")
	}

	profile, err := params.DatabaseConfig(region)
	if err != nil {
		log.Error("Database config error", zap.Error(err))
		return messageResponse(http.StatusInternalServerError, err.Error())
	}

	notifier := h.notifiers(ctx, params)

	result, err := h.processor.Process(ctx, profile, orgID, subscriptionIDs, testMode)
	if err != nil {
		msg := "Operation failed: " + err.Error()
		log.Error("Cancellation failed", zap.Error(err))
		h.notify(ctx, log, notifier, caseID, report.Failure(err))
		return messageResponse(http.StatusInternalServerError, msg)
	}

	h.notify(ctx, log, notifier, caseID, report.Format(result, orgID, subscriptionIDs, testMode))

	return jsonResponse(http.StatusOK, models.CancellationResponse{
		Message:              "MACD request cancellation completed",
		MacdRequestsFound:    result.TotalFound,
		EligibleForUpdate:    result.EligibleCount,
		SkippedWrongStatus:   result.SkippedWrongStatus,
		OrderRequestsUpdated: result.OrderRequestsUpdated,
		MacdRequestsUpdated:  result.MacdRequestsUpdated,
		CaseID:               caseID,
		TestMode:             testMode,
		Committed:            result.Committed,
	})
}

func (h *Handler) notify(ctx context.Context, log *zap.Logger, notifier Notifier, caseID, text string) {
	log.Info("Posting results to case")
	if out := notifier.WriteInternalNote(ctx, caseID, text); !out.Delivered {
		log.Warn("Case note was not delivered", zap.String("reason", out.Reason))
	}
}

var errBodyNotObject = errors.New("request body must be a JSON object")

// decodeBody accepts an already decoded object or a JSON string.
func decodeBody(raw any) (map[string]any, error) {
	switch b := raw.(type) {
	case map[string]any:
		return b, nil
	case nil:
		return nil, errBodyNotObject
	case string:
		v, err := decodeJSON([]byte(b))
		if err != nil {
			return nil, err
		}
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, errBodyNotObject
		}
		return obj, nil
	default:
		return nil, errBodyNotObject
	}
}

func decodeJSON(data []byte) (any, error) {
	var v any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&v); err != nil {
		return nil, err
	}
	if decoder.More() {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}

func messageResponse(status int, message string) models.Response {
	return jsonResponse(status, models.MessageResponse{Message: message})
}

func jsonResponse(status int, body any) models.Response {
	data, err := json.Marshal(body)
	if err != nil {
		return models.Response{StatusCode: http.StatusInternalServerError, Body: `{"message":"failed to encode response"}`}
	}
	return models.Response{StatusCode: status, Body: string(data)}
}
