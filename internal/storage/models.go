package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Account is a bank customer's identity and profile record. Accounts are
// created by provisioning (CSV import); the query pipeline only reads them.
type Account struct {
	CustomerID    string
	Name          string
	AccountNumber string
	IFSCCode      string
	City          string
	AccountType   string
	Status        string
	Contact       string
	Password      string
	CreatedAt     time.Time
}

// Transaction is an immutable ledger entry tied to an account.
// Amount and BalanceAfter are in minor currency units.
type Transaction struct {
	TransactionID string
	CustomerID    string
	AccountNumber string
	OccurredAt    time.Time
	Amount        int64
	Type          string
	Method        string
	Description   string
	BalanceAfter  int64
}
