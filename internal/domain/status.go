package domain

// StepStatus — статус шага в рамках одного run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → DONE
//	                  ↘ FAILED
type StepStatus string

const (
	// StepStatusPending — шаг ещё не запускался.
	StepStatusPending StepStatus = "PENDING"

	// StepStatusRunning — шаг захвачен и выполняется.
	StepStatusRunning StepStatus = "RUNNING"

	// StepStatusDone — результат шага опубликован.
	StepStatusDone StepStatus = "DONE"

	// StepStatusFailed — Generate вернул ошибку.
	StepStatusFailed StepStatus = "FAILED"
)

// IsTerminal возвращает true, если шаг завершён.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusDone, StepStatusFailed:
		return true
	default:
		return false
	}
}

// Claimed возвращает true, если шаг уже был взят на выполнение в этом run.
func (s StepStatus) Claimed() bool {
	return s != "" && s != StepStatusPending
}
