package composer

import (
	"testing"
	"time"

	"github.com/parithi/bankassist/internal/session"
	"github.com/parithi/bankassist/internal/storage"
)

func sessionWith(txs ...storage.Transaction) session.Session {
	return session.Session{
		Account:      storage.Account{AccountNumber: "ACC1", Name: "Asha Rao"},
		Transactions: txs,
		LoginAt:      time.Now(),
	}
}

func TestAssemble_SelectsMostRecent(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	sess := sessionWith(
		storage.Transaction{TransactionID: "T1", OccurredAt: base},
		storage.Transaction{TransactionID: "T3", OccurredAt: base.Add(48 * time.Hour)},
		storage.Transaction{TransactionID: "T2", OccurredAt: base.Add(24 * time.Hour)},
	)

	ctx := Assemble(sess, true)
	if ctx.Transaction == nil {
		t.Fatal("expected a selected transaction")
	}
	if ctx.Transaction.TransactionID != "T3" {
		t.Errorf("selected %s, want T3", ctx.Transaction.TransactionID)
	}
	if !ctx.TransactionRelated {
		t.Error("expected TransactionRelated to be true")
	}
}

func TestAssemble_EmptyHistory(t *testing.T) {
	ctx := Assemble(sessionWith(), true)
	if ctx.Transaction != nil {
		t.Errorf("expected no transaction, got %+v", ctx.Transaction)
	}
	if !ctx.TransactionRelated {
		t.Error("expected TransactionRelated to be true")
	}
}

func TestAssemble_VerdictFalse(t *testing.T) {
	sess := sessionWith(storage.Transaction{TransactionID: "T1", OccurredAt: time.Now()})
	ctx := Assemble(sess, false)
	if ctx.Transaction != nil {
		t.Errorf("expected no transaction when verdict is false, got %+v", ctx.Transaction)
	}
	if ctx.TransactionRelated {
		t.Error("expected TransactionRelated to be false")
	}
}

func TestAssemble_DoesNotAliasSessionSlice(t *testing.T) {
	tx := storage.Transaction{TransactionID: "T1", OccurredAt: time.Now()}
	sess := sessionWith(tx)

	ctx := Assemble(sess, true)
	sess.Transactions[0].TransactionID = "mutated"

	if ctx.Transaction.TransactionID != "T1" {
		t.Errorf("context transaction aliases session data: %s", ctx.Transaction.TransactionID)
	}
}
