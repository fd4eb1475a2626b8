package models

// Condition is one node of a transaction rule. A leaf compares Field with
// Value using Op. A group node sets exactly one of And or Or and matches
// when all (And) or any (Or) of its children match.
type Condition struct {
	Field string      `json:"field,omitempty"`
	Op    string      `json:"op,omitempty"`
	Value any         `json:"value,omitempty"`
	And   []Condition `json:"and,omitempty"`
	Or    []Condition `json:"or,omitempty"`
}
