// Package queue — персистентная очередь задач рассылки.
//
// Очередь выдаёт воркерам задачи атомарно (FOR UPDATE SKIP LOCKED),
// с двухосевой справедливостью (меньше отправок → раньше; старее
// касание → раньше) и двумя ограничителями темпа: часовым потолком
// профиля и cycle delay конкретного чата. Все мутации состояния
// одной попытки — ровно одна транзакция.
package queue
