package service

import (
	"context"
	"errors"
	"strings"

	"github.com/mmeshcher/macd-cancel/internal/models"
	"github.com/mmeshcher/macd-cancel/internal/repository"
)

type macdRow struct {
	ID       string
	BasketID string
	SfdcID   string
	Status   string
}

type orderRow struct {
	ID       string
	BasketID string
	Status   string
}

type tables struct {
	macd   []macdRow
	orders []orderRow
}

func (t tables) clone() tables {
	return tables{
		macd:   append([]macdRow(nil), t.macd...),
		orders: append([]orderRow(nil), t.orders...),
	}
}

// fakeDB is an in-memory tenant database. Sessions work on a copy of the
// tables that is written back only on commit.
type fakeDB struct {
	committed tables

	openErr   error
	findErr   error
	updateErr error

	ops        []string
	schemas    []string
	commits    int
	rollbacks  int
	closes     int
	openedWith models.DatabaseProfile
}

func (db *fakeDB) Open(_ context.Context, profile models.DatabaseProfile) (repository.Session, error) {
	db.openedWith = profile
	if db.openErr != nil {
		return nil, db.openErr
	}
	return &fakeSession{db: db, staged: db.committed.clone()}, nil
}

type fakeSession struct {
	db     *fakeDB
	staged tables
	done   bool
}

func (s *fakeSession) FindMacdRequests(_ context.Context, schema string, subscriptionIDs []string) ([]models.MacdRecord, error) {
	s.db.ops = append(s.db.ops, "find")
	s.db.schemas = append(s.db.schemas, schema)
	if s.db.findErr != nil {
		return nil, s.db.findErr
	}

	var out []models.MacdRecord
	for _, row := range s.staged.macd {
		for _, prefix := range subscriptionIDs {
			if strings.HasPrefix(row.SfdcID, prefix) {
				out = append(out, models.MacdRecord{ID: row.ID, BasketID: row.BasketID, Status: row.Status})
				break
			}
		}
	}
	return out, nil
}

func (s *fakeSession) UpdateOrderRequestStatus(_ context.Context, _ string, basketIDs []string, status string) (int64, error) {
	s.db.ops = append(s.db.ops, "update order_request")
	if s.db.updateErr != nil {
		return 0, s.db.updateErr
	}

	var n int64
	for i, row := range s.staged.orders {
		if contains(basketIDs, row.BasketID) {
			s.staged.orders[i].Status = status
			n++
		}
	}
	return n, nil
}

func (s *fakeSession) UpdateMacdRequestStatus(_ context.Context, _ string, macdIDs []string, status string) (int64, error) {
	s.db.ops = append(s.db.ops, "update macd_request")
	if s.db.updateErr != nil {
		return 0, s.db.updateErr
	}

	var n int64
	for i, row := range s.staged.macd {
		if contains(macdIDs, row.ID) {
			s.staged.macd[i].Status = status
			n++
		}
	}
	return n, nil
}

func (s *fakeSession) Commit(_ context.Context) error {
	if s.done {
		return errors.New("transaction closed")
	}
	s.done = true
	s.db.commits++
	s.db.committed = s.staged
	return nil
}

func (s *fakeSession) Rollback(_ context.Context) error {
	if s.done {
		return nil
	}
	s.done = true
	s.db.rollbacks++
	return nil
}

func (s *fakeSession) Close(_ context.Context) error {
	s.db.closes++
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
