// Package intent decides whether a normalized query needs transaction
// context attached.
package intent

import "strings"

// Classifier reports whether a query is transaction-related. The verdict
// gates context assembly; implementations may be replaced (e.g. by a learned
// model) without changing the assembler's contract.
type Classifier interface {
	IsTransactionRelated(text string) bool
}

// transactionKeywords is the fixed detection set. A match on any keyword is
// sufficient.
var transactionKeywords = []string{
	"transaction",
	"amount",
	"balance",
	"statement",
	"credited",
	"debited",
}

// KeywordClassifier is a deterministic, case-insensitive substring matcher.
// It is a heuristic gate, not a guarantee of relevance: "a balanced diet"
// matches, a misspelled "balence" does not. A false positive only attaches
// harmless extra context.
type KeywordClassifier struct{}

// NewKeywordClassifier returns the default keyword-based classifier.
func NewKeywordClassifier() KeywordClassifier {
	return KeywordClassifier{}
}

// IsTransactionRelated reports whether text contains any detection keyword.
func (KeywordClassifier) IsTransactionRelated(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range transactionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
