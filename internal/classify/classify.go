// Package classify decides the terminal bucket for a parsed document.
// It is a pure function of the extracted fields: no I/O, no state.
package classify

import (
	"github.com/merbantech/ocr-indexer/constants"
	"github.com/merbantech/ocr-indexer/internal/parse"
)

// Outcome maps extracted fields onto one of the three terminal statuses and
// a short human-readable reason tying the fields to the decision.
func Outcome(f parse.Fields) (constants.DocStatus, string) {
	hasName := f.HasName()
	hasAccount := f.AccountCredential() != ""

	switch {
	case hasName && hasAccount:
		return constants.StatusFully, "name and account number extracted"
	case hasName:
		return constants.StatusPartially, "name extracted, no qualifying account number"
	case hasAccount:
		if f.Account == "" {
			return constants.StatusPartially, "id number extracted, no name"
		}
		return constants.StatusPartially, "account number extracted, no name"
	default:
		return constants.StatusFailed, "no identity fields found"
	}
}
