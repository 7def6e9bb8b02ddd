// Package pipeline orchestrates query resolution: normalize → classify →
// assemble → build → submit. Stages run strictly in sequence; the only
// blocking stages (OCR, speech, the model call) are context-bounded by the
// components that own them.
package pipeline

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/parithi/bankassist/internal/composer"
	"github.com/parithi/bankassist/internal/intent"
	"github.com/parithi/bankassist/internal/modality"
	"github.com/parithi/bankassist/internal/session"
	"github.com/parithi/bankassist/internal/storage"
)

// ErrInvalidCredentials is returned by Login for an unknown account number
// or a wrong password; the two cases are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrNoActiveSession is returned when a query arrives before any login.
var ErrNoActiveSession = errors.New("no active session")

// Storage is the read-only query-time contract with the relational store.
type Storage interface {
	FindAccountByNumber(number string) (storage.Account, error)
	ListTransactions(accountNumber string) ([]storage.Transaction, error)
}

// Generator submits a prompt to the remote model service. The
// implementation owns all retry and timeout policy.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Normalizer converts raw input of any modality into query text.
type Normalizer interface {
	NormalizeText(text string) modality.Query
	NormalizeImage(ctx context.Context, imageBytes []byte) (modality.Query, error)
	NormalizeAudio(ctx context.Context, audioBytes []byte) (modality.Query, error)
	NormalizeDocument(ctx context.Context, pdfBytes []byte) (modality.Query, error)
}

// SessionSummary is the outcome of a successful login.
type SessionSummary struct {
	AccountNumber    string    `json:"account_number"`
	Name             string    `json:"name"`
	TransactionCount int       `json:"transaction_count"`
	LoginAt          time.Time `json:"login_at"`
}

// Answer is the pipeline's output for one resolved query.
type Answer struct {
	Reply              string               `json:"reply"`
	QueryText          string               `json:"query_text"`
	Source             modality.Source      `json:"source"`
	TransactionRelated bool                 `json:"transaction_related"`
	Transaction        *storage.Transaction `json:"transaction,omitempty"`
}

// Resolver wires the pipeline stages together. All state lives in the
// injected collaborators; the Resolver itself is safe for concurrent use.
type Resolver struct {
	store      Storage
	sessions   *session.Store
	normalizer Normalizer
	classifier intent.Classifier
	builder    composer.Builder
	model      Generator
}

// NewResolver creates a Resolver over the given collaborators.
func NewResolver(store Storage, sessions *session.Store, normalizer Normalizer, classifier intent.Classifier, model Generator) *Resolver {
	return &Resolver{
		store:      store,
		sessions:   sessions,
		normalizer: normalizer,
		classifier: classifier,
		builder:    composer.NewBuilder(),
		model:      model,
	}
}

// Login authenticates an account and snapshots its profile and transaction
// history into the session store. The snapshot is self-consistent as of
// login time: transactions created later are not visible until re-login.
func (r *Resolver) Login(accountNumber, password string) (SessionSummary, error) {
	accountNumber = strings.TrimSpace(accountNumber)

	account, err := r.store.FindAccountByNumber(accountNumber)
	if errors.Is(err, storage.ErrNotFound) {
		return SessionSummary{}, ErrInvalidCredentials
	}
	if err != nil {
		return SessionSummary{}, fmt.Errorf("looking up account: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(password)), []byte(strings.TrimSpace(account.Password))) != 1 {
		return SessionSummary{}, ErrInvalidCredentials
	}

	transactions, err := r.store.ListTransactions(account.AccountNumber)
	if err != nil {
		return SessionSummary{}, fmt.Errorf("loading transactions: %w", err)
	}

	r.sessions.Put(account.AccountNumber, account, transactions)
	slog.Info("login", "account", account.AccountNumber, "transactions", len(transactions))

	sess, err := r.sessions.Get(account.AccountNumber)
	if err != nil {
		return SessionSummary{}, fmt.Errorf("reading back session: %w", err)
	}
	return SessionSummary{
		AccountNumber:    account.AccountNumber,
		Name:             account.Name,
		TransactionCount: len(transactions),
		LoginAt:          sess.LoginAt,
	}, nil
}

// ResolveText answers a typed query.
func (r *Resolver) ResolveText(ctx context.Context, accountNumber, text string) (Answer, error) {
	return r.resolve(ctx, accountNumber, r.normalizer.NormalizeText(text))
}

// ResolveImage answers a query delivered as a scanned image.
func (r *Resolver) ResolveImage(ctx context.Context, accountNumber string, imageBytes []byte) (Answer, error) {
	q, err := r.normalizer.NormalizeImage(ctx, imageBytes)
	if err != nil {
		return Answer{}, err
	}
	return r.resolve(ctx, accountNumber, q)
}

// ResolveAudio answers a spoken query.
func (r *Resolver) ResolveAudio(ctx context.Context, accountNumber string, audioBytes []byte) (Answer, error) {
	q, err := r.normalizer.NormalizeAudio(ctx, audioBytes)
	if err != nil {
		return Answer{}, err
	}
	return r.resolve(ctx, accountNumber, q)
}

// ResolveDocument answers a query delivered as a PDF statement.
func (r *Resolver) ResolveDocument(ctx context.Context, accountNumber string, pdfBytes []byte) (Answer, error) {
	q, err := r.normalizer.NormalizeDocument(ctx, pdfBytes)
	if err != nil {
		return Answer{}, err
	}
	return r.resolve(ctx, accountNumber, q)
}

// resolve runs classify → assemble → build → submit for normalized text.
// An empty accountNumber falls back to the most recently written session,
// the single-tenant shortcut of the original front-end; callers that know
// their account must pass it explicitly.
func (r *Resolver) resolve(ctx context.Context, accountNumber string, q modality.Query) (Answer, error) {
	var (
		sess session.Session
		err  error
	)
	if accountNumber = strings.TrimSpace(accountNumber); accountNumber != "" {
		sess, err = r.sessions.Get(accountNumber)
		if errors.Is(err, session.ErrNotFound) {
			return Answer{}, ErrNoActiveSession
		}
	} else {
		sess, err = r.sessions.MostRecent()
		if errors.Is(err, session.ErrEmpty) {
			return Answer{}, ErrNoActiveSession
		}
	}
	if err != nil {
		return Answer{}, fmt.Errorf("loading session: %w", err)
	}

	verdict := r.classifier.IsTransactionRelated(q.Text)
	pctx := composer.Assemble(sess, verdict)
	prompt := r.builder.Build(q.Text, pctx)

	reply, err := r.model.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, err
	}

	slog.Debug("query resolved",
		"account", sess.Account.AccountNumber,
		"source", q.Source,
		"transaction_related", verdict,
	)

	return Answer{
		Reply:              reply,
		QueryText:          q.Text,
		Source:             q.Source,
		TransactionRelated: verdict,
		Transaction:        pctx.Transaction,
	}, nil
}
