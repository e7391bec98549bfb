// Package rules implements the stateless rule engine (C5): a
// declarative pattern match over the current buffer and forklift facts
// that emits prioritized recommended actions.
package rules

import (
	"sort"

	"github.com/wms-platform/scheduler-core/internal/statemachine"
)

// ActionType names the kind of recommendation a rule produced.
type ActionType string

const (
	UrgentDelivery      ActionType = "UrgentDelivery"
	RequestPallets      ActionType = "RequestPallets"
	DeactivateForklifts ActionType = "DeactivateForklifts"
)

// RecommendedAction is the engine's output: an action with a priority
// used to resolve conflicts between simultaneously-firing rules.
type RecommendedAction struct {
	Type      ActionType
	Priority  int
	Reason    string
	Pallets   int
	Forklifts int // interpreted per action type: activate count or keep count
}

// BufferFact is the evaluation input describing current buffer state.
type BufferFact struct {
	FillLevel       float64
	State           statemachine.State
	PendingTasks    int
	IdleForklifts   int
	ConsumptionRate float64 // pallets/hour
}

// Rule evaluates a fact and optionally returns an action. insertionOrder
// breaks priority ties.
type rule struct {
	insertionOrder int
	eval           func(BufferFact) (RecommendedAction, bool)
}

// Engine evaluates the minimal rule set from spec.md §4.4. It holds no
// state between Evaluate calls: every cycle starts clean.
type Engine struct {
	rules []rule
}

// New builds the engine with the fixed minimal rule set.
func New() *Engine {
	e := &Engine{}
	e.rules = []rule{
		{0, ruleCritical},
		{1, ruleLowIdleForklifts},
		{2, ruleHighConsumptionProbing},
		{3, ruleOverflow},
	}
	return e
}

// Evaluate retracts all prior facts/actions (there is none held) and
// runs every rule against fact, returning actions sorted by descending
// priority; ties preserve rule insertion order.
func (e *Engine) Evaluate(fact BufferFact) []RecommendedAction {
	var actions []RecommendedAction
	var orders []int
	for _, r := range e.rules {
		if a, ok := r.eval(fact); ok {
			actions = append(actions, a)
			orders = append(orders, r.insertionOrder)
		}
	}
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Priority != actions[j].Priority {
			return actions[i].Priority > actions[j].Priority
		}
		return orders[i] < orders[j]
	})
	return actions
}

func ruleCritical(f BufferFact) (RecommendedAction, bool) {
	if f.State != statemachine.Critical {
		return RecommendedAction{}, false
	}
	return RecommendedAction{
		Type: UrgentDelivery, Priority: 100, Reason: "buffer critical",
		Pallets: 10, Forklifts: -1, // -1 = activate all
	}, true
}

func ruleLowIdleForklifts(f BufferFact) (RecommendedAction, bool) {
	if f.State != statemachine.Low || f.IdleForklifts <= 0 {
		return RecommendedAction{}, false
	}
	pallets := 2 * f.IdleForklifts
	if pallets < 3 {
		pallets = 3
	}
	return RecommendedAction{
		Type: RequestPallets, Priority: 75, Reason: "buffer low with idle forklifts",
		Pallets: pallets, Forklifts: f.IdleForklifts,
	}, true
}

func ruleHighConsumptionProbing(f BufferFact) (RecommendedAction, bool) {
	if f.State != statemachine.Normal || f.ConsumptionRate <= 150 || f.FillLevel >= 0.5 {
		return RecommendedAction{}, false
	}
	return RecommendedAction{
		Type: RequestPallets, Priority: 60, Reason: "high consumption while normal and filling",
		Pallets: 5,
	}, true
}

func ruleOverflow(f BufferFact) (RecommendedAction, bool) {
	if f.State != statemachine.Overflow {
		return RecommendedAction{}, false
	}
	return RecommendedAction{
		Type: DeactivateForklifts, Priority: 50, Reason: "buffer overflow", Forklifts: 1,
	}, true
}
