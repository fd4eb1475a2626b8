// Package rules matches transactions against user-defined condition trees.
package rules

import (
	"encoding/json"
	"fmt"
	"strings"

	"spendwise-server/src/models"

	"github.com/shopspring/decimal"
)

// Subject is the view of a transaction that conditions can inspect.
type Subject struct {
	Description string
	Amount      decimal.Decimal
	AccountName string
	Type        models.TransactionType
}

var (
	stringFields = map[string]bool{"description": true, "account": true, "type": true}
	numberFields = map[string]bool{"amount": true}
	ops          = map[string]bool{"equals": true, "contains": true, "gt": true, "gte": true, "lt": true, "lte": true, "in": true}
)

// Parse decodes and validates a condition tree.
func Parse(raw json.RawMessage) (models.Condition, error) {
	var cond models.Condition
	if len(raw) == 0 {
		return cond, models.Invalid("conditions are required")
	}
	if err := json.Unmarshal(raw, &cond); err != nil {
		return cond, models.Invalid("conditions are not valid JSON: %v", err)
	}
	if err := Validate(cond); err != nil {
		return cond, err
	}
	return cond, nil
}

func Validate(cond models.Condition) error {
	switch {
	case len(cond.And) > 0 && len(cond.Or) > 0:
		return models.Invalid("a condition cannot combine and with or")
	case len(cond.And) > 0:
		return validateAll(cond.And)
	case len(cond.Or) > 0:
		return validateAll(cond.Or)
	}
	if !stringFields[cond.Field] && !numberFields[cond.Field] {
		return models.Invalid("unknown condition field %q", cond.Field)
	}
	if !ops[cond.Op] {
		return models.Invalid("unknown condition op %q", cond.Op)
	}
	if cond.Value == nil {
		return models.Invalid("condition on %q needs a value", cond.Field)
	}
	return nil
}

func validateAll(conds []models.Condition) error {
	for _, c := range conds {
		if err := Validate(c); err != nil {
			return err
		}
	}
	return nil
}

// Match reports whether s satisfies cond.
func Match(cond models.Condition, s Subject) bool {
	// Logical AND
	if len(cond.And) > 0 {
		for _, c := range cond.And {
			if !Match(c, s) {
				return false
			}
		}
		return true
	}
	// Logical OR
	if len(cond.Or) > 0 {
		for _, c := range cond.Or {
			if Match(c, s) {
				return true
			}
		}
		return false
	}

	switch cond.Field {
	case "description":
		return matchString(cond, s.Description)
	case "account":
		return matchString(cond, s.AccountName)
	case "type":
		return matchString(cond, string(s.Type))
	case "amount":
		return matchNumber(cond, s.Amount)
	}
	return false
}

func matchString(cond models.Condition, field string) bool {
	switch cond.Op {
	case "equals":
		val, ok := cond.Value.(string)
		return ok && strings.EqualFold(field, val)
	case "contains":
		val, ok := cond.Value.(string)
		return ok && strings.Contains(strings.ToLower(field), strings.ToLower(val))
	case "in":
		arr, ok := cond.Value.([]any)
		if !ok {
			return false
		}
		for _, item := range arr {
			if str, ok := item.(string); ok && strings.EqualFold(field, str) {
				return true
			}
		}
	}
	return false
}

func matchNumber(cond models.Condition, field decimal.Decimal) bool {
	if cond.Op == "in" {
		arr, ok := cond.Value.([]any)
		if !ok {
			return false
		}
		for _, item := range arr {
			if v, ok := toDecimal(item); ok && field.Equal(v) {
				return true
			}
		}
		return false
	}

	val, ok := toDecimal(cond.Value)
	if !ok {
		return false
	}
	switch cond.Op {
	case "equals":
		return field.Equal(val)
	case "gt":
		return field.GreaterThan(val)
	case "gte":
		return field.GreaterThanOrEqual(val)
	case "lt":
		return field.LessThan(val)
	case "lte":
		return field.LessThanOrEqual(val)
	}
	return false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		d, err := decimal.NewFromString(n)
		return d, err == nil
	}
	return decimal.Zero, false
}

// Compiled is a rule with its condition tree decoded once.
type Compiled struct {
	Rule      models.TransactionRule
	Condition models.Condition
}

// Compile decodes every rule, returning an error naming the first broken one.
func Compile(rules []models.TransactionRule) ([]Compiled, error) {
	out := make([]Compiled, 0, len(rules))
	for _, r := range rules {
		cond, err := Parse(r.Conditions)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", r.ID, err)
		}
		out = append(out, Compiled{Rule: r, Condition: cond})
	}
	return out, nil
}

// First returns the first rule, in the given order, that matches s.
func First(compiled []Compiled, s Subject) (*models.TransactionRule, bool) {
	for i := range compiled {
		if Match(compiled[i].Condition, s) {
			return &compiled[i].Rule, true
		}
	}
	return nil, false
}
