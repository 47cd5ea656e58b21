package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mmeshcher/macd-cancel/internal/models"
)

var (
	ErrInvalidTenant  = errors.New("invalid tenant id")
	ErrTenantNotFound = errors.New("tenant schema not found")
)

var tenantSchemaPattern = regexp.MustCompile(`^org_[a-z0-9_]+$`)

// Session is one connection holding one open transaction.
type Session interface {
	FindMacdRequests(ctx context.Context, schema string, subscriptionIDs []string) ([]models.MacdRecord, error)
	UpdateOrderRequestStatus(ctx context.Context, schema string, basketIDs []string, status string) (int64, error)
	UpdateMacdRequestStatus(ctx context.Context, schema string, macdIDs []string, status string) (int64, error)
	Commit(ctx context.Context) error
	// Rollback is a no-op once the transaction has been committed or rolled back.
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
}

type Opener interface {
	Open(ctx context.Context, profile models.DatabaseProfile) (Session, error)
}

// TenantSchema maps an org id to its schema name. The result is only ever
// used as a quoted identifier, never as a bound value.
func TenantSchema(orgID string) (string, error) {
	schema := "org_" + strings.ToLower(strings.Trim(orgID, `"`))
	if !tenantSchemaPattern.MatchString(schema) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTenant, orgID)
	}
	return schema, nil
}

type PostgresOpener struct {
	connectTimeout time.Duration
}

func NewPostgresOpener(connectTimeout time.Duration) *PostgresOpener {
	return &PostgresOpener{connectTimeout: connectTimeout}
}

func (o *PostgresOpener) Open(ctx context.Context, profile models.DatabaseProfile) (Session, error) {
	config, err := pgx.ParseConfig(profile.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if o.connectTimeout > 0 {
		config.ConnectTimeout = o.connectTimeout
	}

	conn, err := pgx.ConnectConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	return &PostgresSession{
		conn: conn,
		tx:   tx,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

type PostgresSession struct {
	conn *pgx.Conn
	tx   pgx.Tx
	sb   squirrel.StatementBuilderType
}

func (s *PostgresSession) FindMacdRequests(ctx context.Context, schema string, subscriptionIDs []string) ([]models.MacdRecord, error) {
	query, args, err := buildFindMacdRequestsQuery(s.sb, schema, subscriptionIDs)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query macd requests: %w", classify(err, schema))
	}
	defer rows.Close()

	var records []models.MacdRecord
	for rows.Next() {
		var id, basketID, status *string
		if err := rows.Scan(&id, &basketID, &status); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, models.MacdRecord{
			ID:       deref(id),
			BasketID: deref(basketID),
			Status:   deref(status),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", classify(err, schema))
	}

	return records, nil
}

func (s *PostgresSession) UpdateOrderRequestStatus(ctx context.Context, schema string, basketIDs []string, status string) (int64, error) {
	query, args, err := buildStatusUpdate(s.sb, schema, "order_request", "basket_id", basketIDs, status)
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	cmdTag, err := s.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update order requests: %w", classify(err, schema))
	}
	return cmdTag.RowsAffected(), nil
}

func (s *PostgresSession) UpdateMacdRequestStatus(ctx context.Context, schema string, macdIDs []string, status string) (int64, error) {
	query, args, err := buildStatusUpdate(s.sb, schema, "macd_request", "id", macdIDs, status)
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	cmdTag, err := s.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update macd requests: %w", classify(err, schema))
	}
	return cmdTag.RowsAffected(), nil
}

func (s *PostgresSession) Commit(ctx context.Context) error {
	if err := s.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresSession) Rollback(ctx context.Context) error {
	if err := s.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

func (s *PostgresSession) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

func buildFindMacdRequestsQuery(sb squirrel.StatementBuilderType, schema string, subscriptionIDs []string) (string, []any, error) {
	prefixes := squirrel.Or{}
	for _, id := range subscriptionIDs {
		prefixes = append(prefixes, squirrel.Like{"sfdc_id": prefixPattern(id)})
	}

	// Built with ? placeholders; the outer builder renumbers them.
	subQuery, subArgs, err := squirrel.
		Select("id").
		From(table(schema, "subscription")).
		Where(prefixes).
		ToSql()
	if err != nil {
		return "", nil, err
	}

	return sb.
		Select("id::text", "basket_id::text", "status").
		From(table(schema, "macd_request")).
		Where(squirrel.Expr("subscription_id IN ("+subQuery+")", subArgs...)).
		ToSql()
}

func buildStatusUpdate(sb squirrel.StatementBuilderType, schema, tableName, column string, ids []string, status string) (string, []any, error) {
	return sb.
		Update(table(schema, tableName)).
		Set("status", status).
		Where(squirrel.Eq{column: ids}).
		ToSql()
}

func table(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// prefixPattern turns an id into a case-sensitive LIKE prefix match.
func prefixPattern(id string) string {
	return likeEscaper.Replace(id) + "%"
}

func classify(err error, schema string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.InvalidSchemaName, pgerrcode.UndefinedTable:
			return fmt.Errorf("%w: %s: %s", ErrTenantNotFound, schema, pgErr.Message)
		}
	}
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
