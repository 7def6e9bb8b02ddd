// Package composer turns a session snapshot and a classifier verdict into a
// grounded prompt for the model service.
package composer

import (
	"github.com/parithi/bankassist/internal/session"
	"github.com/parithi/bankassist/internal/storage"
)

// Context is the transient value fed to the prompt builder: the account
// profile snapshot, at most one selected transaction, and the relevance
// verdict that drove selection. It exists only for one query's processing.
type Context struct {
	Account            storage.Account
	Transaction        *storage.Transaction
	TransactionRelated bool
}

// Assemble selects the prompt context from a session. When the verdict is
// true, the single most recent transaction (by timestamp) is selected; an
// empty history yields a context with no transaction, which the builder
// renders as "no transactions found". When the verdict is false no
// transaction is attached. Pure and side-effect-free.
func Assemble(sess session.Session, transactionRelated bool) Context {
	ctx := Context{
		Account:            sess.Account,
		TransactionRelated: transactionRelated,
	}
	if !transactionRelated {
		return ctx
	}

	var latest *storage.Transaction
	for i := range sess.Transactions {
		t := &sess.Transactions[i]
		if latest == nil || t.OccurredAt.After(latest.OccurredAt) {
			latest = t
		}
	}
	if latest != nil {
		selected := *latest
		ctx.Transaction = &selected
	}
	return ctx
}
