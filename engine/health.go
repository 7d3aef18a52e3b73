package engine

import "math"

// Session health scoring. Every fault adds faultPenalty to the score and
// every success removes successCredit (min 0). A session whose score
// reaches faultBudget is retired on the next Acquire.
const (
	faultPenalty  = 1.0
	successCredit = 0.5
	faultBudget   = 3.0
)

// RecordSuccess lowers the session's error score.
func (m *SessionManager) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errScore = math.Max(0, m.errScore-successCredit)
}

// RecordFault raises the session's error score.
func (m *SessionManager) RecordFault() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errScore += faultPenalty
}

// unhealthy reports whether the error score has used up the fault budget.
// Callers hold m.mu.
func (m *SessionManager) unhealthy() bool {
	return m.errScore >= faultBudget
}
