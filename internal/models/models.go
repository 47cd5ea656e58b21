package models

import (
	"net"
	"net/url"
	"strconv"
)

const (
	StatusPosted = "posted"

	OrderRequestCancelledStatus = "Error"
	MacdRequestCancelledStatus  = "posted1"

	DefaultDatabasePort = 5432
)

type Event struct {
	Body                  any               `json:"body"`
	QueryStringParameters map[string]string `json:"queryStringParameters"`
}

type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CancellationResponse struct {
	Message              string `json:"message"`
	MacdRequestsFound    int64  `json:"macd_requests_found"`
	EligibleForUpdate    int64  `json:"eligible_for_update"`
	SkippedWrongStatus   int64  `json:"skipped_wrong_status"`
	OrderRequestsUpdated int64  `json:"order_requests_updated"`
	MacdRequestsUpdated  int64  `json:"macd_requests_updated"`
	CaseID               string `json:"case_id"`
	TestMode             bool   `json:"test_mode"`
	Committed            bool   `json:"committed"`
}

type CancellationRequest struct {
	OrgID           string   `validate:"required"`
	SubscriptionIDs []string `validate:"required,min=1"`
	Region          string   `validate:"required"`
	CaseID          string   `validate:"required"`
	TestMode        bool
}

type DatabaseProfile struct {
	DBName   string
	User     string
	Password string
	Host     string
	Port     int
}

// DSN renders the profile as a postgres:// URL so credentials are escaped.
func (p DatabaseProfile) DSN() string {
	port := p.Port
	if port == 0 {
		port = DefaultDatabasePort
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(port)),
		Path:   "/" + p.DBName,
	}
	return u.String()
}

// MacdRecord is a macd_request row. Empty ID or BasketID means NULL.
type MacdRecord struct {
	ID       string
	BasketID string
	Status   string
}

type CancellationResult struct {
	TotalFound           int64
	EligibleCount        int64
	SkippedWrongStatus   int64
	OrderRequestsUpdated int64
	MacdRequestsUpdated  int64
	Committed            bool

	MacdRecords      []MacdRecord
	SkippedRecords   []MacdRecord
	UpdatedBasketIDs []string
	UpdatedMacdIDs   []string
}
