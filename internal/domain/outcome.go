package domain

// OutcomeKind — тег результата одной попытки отправки.
//
// Драйвер сам классифицирует свои наблюдения в один из этих тегов;
// ядро не знает деталей протокола.
type OutcomeKind string

// Теги исходов.
const (
	// OutcomeSuccess — сообщение доставлено.
	OutcomeSuccess OutcomeKind = "success"

	// OutcomeChatNotFound — чат не нашёлся в этой попытке.
	OutcomeChatNotFound OutcomeKind = "chat_not_found"

	// OutcomeAccountFrozen — аккаунт терминально отклонён сервисом.
	OutcomeAccountFrozen OutcomeKind = "account_frozen"

	// Ограничения конкретного чата — могут пройти в следующем цикле.
	OutcomeNeedToJoin       OutcomeKind = "need_to_join"
	OutcomePremiumRequired  OutcomeKind = "premium_required"
	OutcomeStarsRequired    OutcomeKind = "stars_required"
	OutcomeUserBlocked      OutcomeKind = "user_blocked"
	OutcomeInputUnavailable OutcomeKind = "input_unavailable"

	// OutcomeSlowMode — чат ограничивает частоту; повторить через WaitSeconds.
	OutcomeSlowMode OutcomeKind = "slow_mode"

	// Транспортные и драйверные сбои.
	OutcomeNetworkError    OutcomeKind = "network_error"
	OutcomeSelectorMissing OutcomeKind = "selector_missing"
	OutcomeTimeout         OutcomeKind = "timeout"
	OutcomeUnexpectedError OutcomeKind = "unexpected_error"
)

// Outcome — тегированный результат одного вызова SendAction.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`

	// WaitSeconds — задержка, затребованная чатом (только для slow_mode).
	WaitSeconds int `json:"wait_seconds,omitempty"`

	// Detail — человекочитаемые подробности для журнала попыток.
	Detail string `json:"detail,omitempty"`
}

// Success сообщает, является ли исход успешной доставкой.
func (o Outcome) Success() bool {
	return o.Kind == OutcomeSuccess
}

// KnownOutcomeKinds перечисляет все теги, различаемые классификатором.
func KnownOutcomeKinds() []OutcomeKind {
	return []OutcomeKind{
		OutcomeSuccess,
		OutcomeChatNotFound,
		OutcomeAccountFrozen,
		OutcomeNeedToJoin,
		OutcomePremiumRequired,
		OutcomeStarsRequired,
		OutcomeUserBlocked,
		OutcomeInputUnavailable,
		OutcomeSlowMode,
		OutcomeNetworkError,
		OutcomeSelectorMissing,
		OutcomeTimeout,
		OutcomeUnexpectedError,
	}
}
