// Package cli — операторские команды don: запуск и остановка
// супервизора, срезы состояния, импорт чатов, сообщений, профилей
// и прокси, миграции схемы.
package cli
