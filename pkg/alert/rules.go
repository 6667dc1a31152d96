package alert

import (
	"sync/atomic"
	"time"

	"github.com/beaconhq/pulse/pkg/span"
)

// RuleTable holds the live set of alert rules behind an atomic pointer, so
// CRUD operations are copy-on-write swaps and the evaluation loop never
// blocks on a reader/writer lock — the same discipline pkg/config and
// pkg/cost use for their own reloadable tables.
type RuleTable struct {
	current atomic.Pointer[map[span.ID]span.AlertRule]
}

// NewRuleTable constructs an empty table.
func NewRuleTable() *RuleTable {
	t := &RuleTable{}
	empty := make(map[span.ID]span.AlertRule)
	t.current.Store(&empty)
	return t
}

// Snapshot returns the currently active rule set. The returned map must be
// treated as read-only.
func (t *RuleTable) Snapshot() map[span.ID]span.AlertRule {
	return *t.current.Load()
}

// Get returns one rule by ID.
func (t *RuleTable) Get(id span.ID) (span.AlertRule, bool) {
	m := *t.current.Load()
	r, ok := m[id]
	return r, ok
}

// Upsert idempotently creates or replaces a rule, preserving its runtime
// evaluation state (LastEvaluated/ConsecutiveTrips/State/OpenEventID) when
// the rule already exists — editing a rule's condition must not silently
// reset an in-progress trip streak.
func (t *RuleTable) Upsert(rule span.AlertRule) span.AlertRule {
	for {
		old := t.current.Load()
		oldMap := *old
		if existing, ok := oldMap[rule.RuleID]; ok {
			rule.LastEvaluated = existing.LastEvaluated
			rule.LastTriggered = existing.LastTriggered
			rule.ConsecutiveTrips = existing.ConsecutiveTrips
			rule.State = existing.State
			rule.OpenEventID = existing.OpenEventID
		}
		if rule.CreatedAt.IsZero() {
			rule.CreatedAt = time.Now().UTC()
		}
		rule.UpdatedAt = time.Now().UTC()

		next := cloneRules(oldMap)
		next[rule.RuleID] = rule
		if t.current.CompareAndSwap(old, &next) {
			return rule
		}
	}
}

// Delete removes a rule. Idempotent: deleting an unknown ID is a no-op.
func (t *RuleTable) Delete(id span.ID) {
	for {
		old := t.current.Load()
		oldMap := *old
		if _, ok := oldMap[id]; !ok {
			return
		}
		next := cloneRules(oldMap)
		delete(next, id)
		if t.current.CompareAndSwap(old, &next) {
			return
		}
	}
}

// SetEnabled idempotently enables or disables a rule.
func (t *RuleTable) SetEnabled(id span.ID, enabled bool) bool {
	for {
		old := t.current.Load()
		oldMap := *old
		rule, ok := oldMap[id]
		if !ok {
			return false
		}
		if rule.Enabled == enabled {
			return true
		}
		rule.Enabled = enabled
		rule.UpdatedAt = time.Now().UTC()
		next := cloneRules(oldMap)
		next[id] = rule
		if t.current.CompareAndSwap(old, &next) {
			return true
		}
	}
}

// updateRuntime swaps in a rule's post-evaluation runtime state. Called
// only by the engine's own evaluation loop, never by the control API.
func (t *RuleTable) updateRuntime(updated span.AlertRule) {
	for {
		old := t.current.Load()
		oldMap := *old
		if _, ok := oldMap[updated.RuleID]; !ok {
			return // rule was deleted mid-tick
		}
		next := cloneRules(oldMap)
		next[updated.RuleID] = updated
		if t.current.CompareAndSwap(old, &next) {
			return
		}
	}
}

func cloneRules(m map[span.ID]span.AlertRule) map[span.ID]span.AlertRule {
	next := make(map[span.ID]span.AlertRule, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	return next
}
