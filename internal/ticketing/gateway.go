package ticketing

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mmeshcher/macd-cancel/internal/tracer"
)

// Outcome reports whether a ticket operation reached the API. Gateway
// operations never fail the caller.
type Outcome struct {
	Delivered bool
	Reason    string
}

type Gateway struct {
	client *Client
	logger *zap.Logger
}

// NewGateway probes the API once. A failed probe is logged and the gateway
// is returned anyway.
func NewGateway(ctx context.Context, client *Client, logger *zap.Logger) *Gateway {
	if !client.Ping(ctx) {
		logger.Warn("Ticketing connection test failed, notes may not be delivered")
	}
	return &Gateway{client: client, logger: logger}
}

type noteComment struct {
	Body   string `json:"body"`
	Public bool   `json:"public"`
}

type noteTicket struct {
	ID      any         `json:"id"`
	Comment noteComment `json:"comment"`
}

type notePayload struct {
	Tickets []noteTicket `json:"tickets"`
}

type tagsPayload struct {
	Tags string `json:"tags"`
}

type tagList struct {
	Data []struct {
		Name string `json:"name"`
	} `json:"data"`
}

// WriteInternalNote appends a private comment to the ticket.
func (g *Gateway) WriteInternalNote(ctx context.Context, ticketID, text string) (out Outcome) {
	ctx, span := tracer.Start(ctx, "Gateway.WriteInternalNote")
	defer span.End()
	defer g.recoverOutcome("write internal note", &out)
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	payload := notePayload{Tickets: []noteTicket{{
		ID:      ticketRef(ticketID),
		Comment: noteComment{Body: text, Public: false},
	}}}

	if _, ok := g.client.Put(ctx, "tickets/update_many", true, payload); !ok {
		return g.undelivered("write internal note", ticketID)
	}

	g.logger.Info("Internal note posted", zap.String("ticket_id", ticketID))
	return Outcome{Delivered: true}
}

// AddTags attaches tags to the case.
func (g *Gateway) AddTags(ctx context.Context, ticketID string, tags ...string) (out Outcome) {
	ctx, span := tracer.Start(ctx, "Gateway.AddTags")
	defer span.End()
	defer g.recoverOutcome("add tags", &out)

	endpoint := fmt.Sprintf("cases/%s/tags.json", ticketID)
	if _, ok := g.client.Post(ctx, endpoint, false, tagsPayload{Tags: strings.Join(tags, ", ")}); !ok {
		return g.undelivered("add tags", ticketID)
	}
	return Outcome{Delivered: true}
}

// DeleteTags rewrites the case tag list without the given tags.
func (g *Gateway) DeleteTags(ctx context.Context, ticketID string, tags ...string) (out Outcome) {
	ctx, span := tracer.Start(ctx, "Gateway.DeleteTags")
	defer span.End()
	defer g.recoverOutcome("delete tags", &out)

	endpoint := fmt.Sprintf("cases/%s/tags.json", ticketID)

	raw, ok := g.client.Get(ctx, endpoint, false)
	if !ok {
		return g.undelivered("read tags", ticketID)
	}

	var current tagList
	if err := json.Unmarshal(raw, &current); err != nil {
		g.logger.Error("Failed to decode tag list", zap.String("ticket_id", ticketID), zap.Error(err))
		return Outcome{Reason: "decode tags: " + err.Error()}
	}

	kept := make([]string, 0, len(current.Data))
	for _, tag := range current.Data {
		if !slices.Contains(tags, tag.Name) {
			kept = append(kept, tag.Name)
		}
	}

	if _, ok := g.client.Put(ctx, endpoint, false, tagsPayload{Tags: strings.Join(kept, ",")}); !ok {
		return g.undelivered("delete tags", ticketID)
	}
	return Outcome{Delivered: true}
}

func (g *Gateway) undelivered(op, ticketID string) Outcome {
	g.logger.Warn("Ticket operation was not delivered",
		zap.String("operation", op),
		zap.String("ticket_id", ticketID))
	return Outcome{Reason: op + " failed"}
}

func (g *Gateway) recoverOutcome(op string, out *Outcome) {
	if r := recover(); r != nil {
		g.logger.Error("Ticket operation panicked",
			zap.String("operation", op),
			zap.Any("panic", r))
		*out = Outcome{Reason: fmt.Sprintf("%s panicked: %v", op, r)}
	}
}

// ticketRef sends numeric ticket ids as numbers.
func ticketRef(ticketID string) any {
	if n, err := strconv.ParseInt(ticketID, 10, 64); err == nil {
		return n
	}
	return ticketID
}
