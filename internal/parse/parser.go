package parse

import (
	"log/slog"
	"strings"
)

// Fields is the outcome of label parsing. An empty string means the field is
// absent; parsing itself never fails.
type Fields struct {
	Name    string `json:"name,omitempty"`
	Account string `json:"account,omitempty"`
	ID      string `json:"id,omitempty"`
}

func (f Fields) HasName() bool { return f.Name != "" }

// AccountCredential returns the account-side credential used for
// classification: the account number when present, otherwise a qualifying ID
// variant. Both passed the same digit-run constraint during parsing.
func (f Fields) AccountCredential() string {
	if f.Account != "" {
		return f.Account
	}
	return f.ID
}

// Map renders the fields for storage on a document record.
func (f Fields) Map() map[string]string {
	m := make(map[string]string, 3)
	if f.Name != "" {
		m[string(FieldName)] = f.Name
	}
	if f.Account != "" {
		m[string(FieldAccount)] = f.Account
	}
	if f.ID != "" {
		m[string(FieldID)] = f.ID
	}
	return m
}

// Parser runs an ordered rule list over extracted text.
type Parser struct {
	rules  []Rule
	logger *slog.Logger
}

// NewParser builds a parser; with no explicit rules it uses DefaultRules.
func NewParser(logger *slog.Logger, rules ...Rule) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Parser{rules: rules, logger: logger}
}

// Parse extracts identity fields from concatenated page text.
func (p *Parser) Parse(text string) Fields {
	lines := strings.Split(text, "\n")
	var f Fields
	for _, r := range p.rules {
		switch r.Field {
		case FieldName:
			if f.Name != "" {
				continue
			}
			if v, ok := r.Match(lines); ok {
				f.Name = v
			}
		case FieldAccount:
			if f.Account != "" {
				continue
			}
			if v, ok := r.Match(lines); ok {
				f.Account = v
			}
		case FieldID:
			if f.ID != "" {
				continue
			}
			if v, ok := r.Match(lines); ok {
				f.ID = v
			}
		}
	}
	p.logger.Debug("parsed fields",
		"has_name", f.Name != "",
		"has_account", f.Account != "",
		"has_id", f.ID != "",
	)
	return f
}
