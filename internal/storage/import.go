package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ImportResult reports how many records a bulk import inserted.
type ImportResult struct {
	Accounts     int
	Transactions int
}

// ImportCSV bulk-loads provisioning data from the given CSV files. Either
// path may be empty to skip that file. Both files are parsed concurrently;
// inserts happen sequentially afterwards because the store is limited to a
// single connection.
func (s *Store) ImportCSV(accountsPath, transactionsPath string) (ImportResult, error) {
	var (
		accounts     []Account
		transactions []Transaction
	)

	var g errgroup.Group
	if accountsPath != "" {
		g.Go(func() error {
			var err error
			accounts, err = parseAccountsCSV(accountsPath)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", accountsPath, err)
			}
			return nil
		})
	}
	if transactionsPath != "" {
		g.Go(func() error {
			var err error
			transactions, err = parseTransactionsCSV(transactionsPath)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", transactionsPath, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	for _, a := range accounts {
		if err := s.InsertAccount(a); err != nil {
			return res, fmt.Errorf("inserting account %s: %w", a.AccountNumber, err)
		}
		res.Accounts++
	}
	for _, t := range transactions {
		if err := s.InsertTransaction(t); err != nil {
			return res, fmt.Errorf("inserting transaction %s: %w", t.TransactionID, err)
		}
		res.Transactions++
	}
	return res, nil
}

func parseAccountsCSV(path string) ([]Account, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	var accounts []Account
	for i, row := range rows {
		get := fieldGetter(header, row)
		a := Account{
			CustomerID:    get("customer_id"),
			Name:          get("name"),
			AccountNumber: get("account_number"),
			IFSCCode:      get("ifsc_code"),
			City:          get("account_city"),
			AccountType:   get("account_type"),
			Status:        get("status"),
			Contact:       get("contact"),
			Password:      get("password"),
		}
		if a.CustomerID == "" || a.AccountNumber == "" {
			return nil, fmt.Errorf("row %d: missing customer_id or account_number", i+2)
		}
		if raw := get("created_at"); raw != "" {
			t, err := parseTimestamp(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
			a.CreatedAt = t
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func parseTransactionsCSV(path string) ([]Transaction, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	var transactions []Transaction
	for i, row := range rows {
		get := fieldGetter(header, row)
		t := Transaction{
			TransactionID: get("transaction_id"),
			CustomerID:    get("customer_id"),
			AccountNumber: get("account_number"),
			Type:          get("transaction_type"),
			Method:        get("method"),
			Description:   get("description"),
		}
		if t.TransactionID == "" || t.AccountNumber == "" {
			return nil, fmt.Errorf("row %d: missing transaction_id or account_number", i+2)
		}

		occurred, err := parseTimestamp(get("date_time"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		t.OccurredAt = occurred

		if t.Amount, err = parseMinorUnits(get("amount")); err != nil {
			return nil, fmt.Errorf("row %d: amount: %w", i+2, err)
		}
		if raw := get("balance_after_transaction"); raw != "" {
			if t.BalanceAfter, err = parseMinorUnits(raw); err != nil {
				return nil, fmt.Errorf("row %d: balance_after_transaction: %w", i+2, err)
			}
		}
		transactions = append(transactions, t)
	}
	return transactions, nil
}

// readCSV returns all data rows plus a lowercased header index.
func readCSV(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	headerRow, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}
	header := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}

func fieldGetter(header map[string]int, row []string) func(string) string {
	return func(name string) string {
		i, ok := header[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
}

func parseMinorUnits(raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("empty amount")
	}
	return strconv.ParseInt(raw, 10, 64)
}

// parseTimestamp accepts RFC 3339 or the "2006-01-02 15:04:05" layout the
// provisioning exports use.
func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", raw, err)
	}
	return t.UTC(), nil
}
