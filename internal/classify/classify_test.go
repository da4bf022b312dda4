package classify

import (
	"testing"
	"time"

	"github.com/Stepan2222000/don/internal/domain"
)

// Каждый известный тег обязан давать определённое действие над задачей.
func TestClassify_Totality(t *testing.T) {
	for _, kind := range domain.KnownOutcomeKinds() {
		d := Classify(domain.Outcome{Kind: kind}, 0, 3)

		switch d.Task {
		case TaskAdvanceCycle, TaskReschedule, TaskBlock, TaskRelease:
		default:
			t.Errorf("kind %s: undefined task action %d", kind, d.Task)
		}
	}
}

// Неизвестный тег сводится к unexpected_error.
func TestClassify_UnknownKind(t *testing.T) {
	d := Classify(domain.Outcome{Kind: "weird_new_kind"}, 0, 3)

	if d.Task != TaskReschedule {
		t.Errorf("unknown kind should reschedule, got %d", d.Task)
	}
	if d.Proxy != ProxyRecordOtherError {
		t.Errorf("unknown kind should record other_error, got %d", d.Proxy)
	}
}

func TestClassify_Success(t *testing.T) {
	d := Classify(domain.Outcome{Kind: domain.OutcomeSuccess}, 0, 3)

	if d.Task != TaskAdvanceCycle {
		t.Errorf("expected TaskAdvanceCycle, got %d", d.Task)
	}
	if d.Profile != ProfileCountSend {
		t.Errorf("expected ProfileCountSend, got %d", d.Profile)
	}
	if d.Proxy != ProxyRecordSuccess {
		t.Errorf("expected ProxyRecordSuccess, got %d", d.Proxy)
	}
	if d.Worker != WorkerContinue {
		t.Errorf("success must not stop worker")
	}
	if d.CountFailure {
		t.Errorf("success must not count as failure")
	}
}

func TestClassify_ChatNotFound(t *testing.T) {
	d := Classify(domain.Outcome{Kind: domain.OutcomeChatNotFound}, 0, 3)

	if d.Task != TaskBlock {
		t.Errorf("chat_not_found must block the task")
	}
	if d.BlockReason != domain.BlockReasonChatNotFound {
		t.Errorf("wrong block reason: %s", d.BlockReason)
	}
	if d.Proxy != ProxyRecordChatNotFound {
		t.Errorf("chat_not_found must be recorded against the proxy")
	}
	if d.Profile != ProfileNone {
		t.Errorf("chat_not_found must not touch the profile")
	}
}

func TestClassify_AccountFrozen(t *testing.T) {
	d := Classify(domain.Outcome{Kind: domain.OutcomeAccountFrozen}, 0, 3)

	if d.Task != TaskRelease {
		t.Errorf("frozen account must release the claim, got %d", d.Task)
	}
	if d.Profile != ProfileBlock {
		t.Errorf("frozen account must block the profile")
	}
	if d.Worker != WorkerStopDoNotRestart {
		t.Errorf("frozen account must stop the worker permanently")
	}
	if d.CountFailure {
		t.Errorf("frozen account must not count against the task")
	}
}

// Ограничения чата: записать неуспех, цикл не двигать, не блокировать —
// и не тратить бюджет too_many_failures.
func TestClassify_Restrictions(t *testing.T) {
	restrictions := []domain.OutcomeKind{
		domain.OutcomeNeedToJoin,
		domain.OutcomePremiumRequired,
		domain.OutcomeStarsRequired,
		domain.OutcomeUserBlocked,
		domain.OutcomeInputUnavailable,
	}

	for _, kind := range restrictions {
		// failuresSinceSuccess заведомо выше бюджета: ограничение
		// всё равно не должно блокировать.
		d := Classify(domain.Outcome{Kind: kind}, 100, 3)

		if d.Task != TaskReschedule {
			t.Errorf("%s: expected TaskReschedule, got %d", kind, d.Task)
		}
		if !d.CountFailure {
			t.Errorf("%s: must count as failed attempt", kind)
		}
		if d.Profile != ProfileNone || d.Proxy != ProxyNone {
			t.Errorf("%s: must not touch profile or proxy", kind)
		}
	}
}

func TestClassify_SlowMode(t *testing.T) {
	d := Classify(domain.Outcome{Kind: domain.OutcomeSlowMode, WaitSeconds: 90}, 0, 3)

	if d.Task != TaskRelease {
		t.Errorf("slow_mode must release the claim")
	}
	if d.RescheduleAfter != 90*time.Second {
		t.Errorf("expected 90s reschedule, got %v", d.RescheduleAfter)
	}
	if d.CountFailure {
		t.Errorf("slow_mode must not count failed_count")
	}
}

func TestClassify_TransportFaults(t *testing.T) {
	faults := []domain.OutcomeKind{
		domain.OutcomeNetworkError,
		domain.OutcomeSelectorMissing,
		domain.OutcomeTimeout,
		domain.OutcomeUnexpectedError,
	}

	for _, kind := range faults {
		// До бюджета — reschedule.
		d := Classify(domain.Outcome{Kind: kind}, 0, 3)
		if d.Task != TaskReschedule {
			t.Errorf("%s below budget: expected TaskReschedule, got %d", kind, d.Task)
		}
		if d.Proxy != ProxyRecordOtherError {
			t.Errorf("%s: must record other_error against proxy", kind)
		}

		// Бюджет исчерпан — блокировка.
		d = Classify(domain.Outcome{Kind: kind}, 2, 3)
		if d.Task != TaskBlock {
			t.Errorf("%s at budget: expected TaskBlock, got %d", kind, d.Task)
		}
		if d.BlockReason != domain.BlockReasonTooManyFailures {
			t.Errorf("%s: wrong block reason %s", kind, d.BlockReason)
		}
		if d.Worker != WorkerContinue {
			t.Errorf("%s: transport fault must not stop worker", kind)
		}
	}
}

// Граница бюджета: failuresSinceSuccess+1 >= max.
func TestClassify_FailureBudgetBoundary(t *testing.T) {
	d := Classify(domain.Outcome{Kind: domain.OutcomeNetworkError}, 1, 3)
	if d.Task != TaskReschedule {
		t.Errorf("2nd failure of 3: must still reschedule")
	}

	d = Classify(domain.Outcome{Kind: domain.OutcomeNetworkError}, 2, 3)
	if d.Task != TaskBlock {
		t.Errorf("3rd failure of 3: must block")
	}
}
