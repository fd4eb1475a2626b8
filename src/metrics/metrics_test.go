package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterAndGather(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("spendwise")
	if err := reg.Register(m); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	m.ObserveRequest("GET", "/api/budgets", 200, 15*time.Millisecond)
	m.BudgetWarning("critical")
	m.Evaluation(OutcomeWarning)
	m.EvaluationDropped()
	m.SetQueueDepth(3)
	m.NotificationSent(false)
	m.SetCircuitState("telegram", 1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{
		"spendwise_http_requests_total",
		"spendwise_budget_warnings_total",
		"spendwise_budget_evaluations_dropped_total",
		"spendwise_budget_evaluation_queue_depth",
		"spendwise_circuit_state",
	} {
		if !found[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}
}
