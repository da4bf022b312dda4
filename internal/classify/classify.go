// Package classify — классификатор исходов отправки.
//
// Classify — чистая тотальная функция от тега Outcome к тройке действий
// {задача, профиль, прокси} плюс действие воркера. Никакого I/O:
// решение применяет очередь задач внутри записывающей транзакции.
package classify

import (
	"time"

	"github.com/Stepan2222000/don/internal/domain"
)

// TaskAction — что сделать с задачей.
type TaskAction int

// Действия над задачей.
const (
	// TaskAdvanceCycle — засчитать успешный цикл и перепланировать
	// задачу через cycle delay.
	TaskAdvanceCycle TaskAction = iota

	// TaskReschedule — записать неуспех, цикл не двигать, отложить задачу.
	TaskReschedule

	// TaskBlock — перманентно заблокировать задачу.
	TaskBlock

	// TaskRelease — снять claim без учёта отказа (задача сразу pending).
	TaskRelease
)

// ProfileAction — что сделать с профилем.
type ProfileAction int

// Действия над профилем.
const (
	ProfileNone ProfileAction = iota

	// ProfileCountSend — засчитать отправку в часовое окно.
	ProfileCountSend

	// ProfileBlock — терминально заблокировать профиль.
	ProfileBlock
)

// ProxyAction — какой счётчик прокси инкрементировать.
type ProxyAction int

// Действия над статистикой прокси.
const (
	ProxyNone ProxyAction = iota
	ProxyRecordSuccess
	ProxyRecordChatNotFound
	ProxyRecordOtherError
)

// WorkerAction — что делать воркеру после записи исхода.
type WorkerAction int

// Действия воркера.
const (
	WorkerContinue WorkerAction = iota

	// WorkerStopDoNotRestart — выйти с кодом «не перезапускать».
	WorkerStopDoNotRestart
)

// Decision — результат классификации одного Outcome.
type Decision struct {
	Task TaskAction

	// CountFailure — инкрементировать failed_count задачи.
	CountFailure bool

	// BlockReason — причина для TaskBlock.
	BlockReason string

	// RescheduleAfter — явная отсрочка задачи (slow_mode). Ноль для
	// TaskReschedule означает стандартный failure backoff очереди, для
	// TaskRelease — освобождение claim без отсрочки.
	RescheduleAfter time.Duration

	Profile ProfileAction
	Proxy   ProxyAction
	Worker  WorkerAction
}

// Classify отображает исход в решение.
//
// failuresSinceSuccess — число транспортных и драйверных сбоев задачи
// после последнего успеха (без текущей); maxAttemptsBeforeBlock — бюджет отказов, после
// которого транспортные сбои блокируют задачу. Неизвестный тег
// обрабатывается как unexpected_error.
func Classify(o domain.Outcome, failuresSinceSuccess, maxAttemptsBeforeBlock int) Decision {
	switch o.Kind {
	case domain.OutcomeSuccess:
		return Decision{
			Task:    TaskAdvanceCycle,
			Profile: ProfileCountSend,
			Proxy:   ProxyRecordSuccess,
		}

	case domain.OutcomeChatNotFound:
		return Decision{
			Task:         TaskBlock,
			CountFailure: true,
			BlockReason:  domain.BlockReasonChatNotFound,
			Proxy:        ProxyRecordChatNotFound,
		}

	case domain.OutcomeAccountFrozen:
		return Decision{
			Task:    TaskRelease,
			Profile: ProfileBlock,
			Worker:  WorkerStopDoNotRestart,
		}

	case domain.OutcomeNeedToJoin,
		domain.OutcomePremiumRequired,
		domain.OutcomeStarsRequired,
		domain.OutcomeUserBlocked,
		domain.OutcomeInputUnavailable:
		// Ограничения чата не тратят бюджет too_many_failures:
		// они могут сняться в следующем цикле или у другого профиля.
		return Decision{
			Task:         TaskReschedule,
			CountFailure: true,
		}

	case domain.OutcomeSlowMode:
		return Decision{
			Task:            TaskRelease,
			RescheduleAfter: time.Duration(o.WaitSeconds) * time.Second,
		}

	case domain.OutcomeNetworkError,
		domain.OutcomeSelectorMissing,
		domain.OutcomeTimeout,
		domain.OutcomeUnexpectedError:
		d := Decision{
			Task:         TaskReschedule,
			CountFailure: true,
			Proxy:        ProxyRecordOtherError,
		}
		if failuresSinceSuccess+1 >= maxAttemptsBeforeBlock {
			d.Task = TaskBlock
			d.BlockReason = domain.BlockReasonTooManyFailures
		}
		return d

	default:
		return Classify(domain.Outcome{
			Kind:   domain.OutcomeUnexpectedError,
			Detail: o.Detail,
		}, failuresSinceSuccess, maxAttemptsBeforeBlock)
	}
}
