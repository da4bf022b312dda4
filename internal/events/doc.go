// Package events — best-effort публикация событий рассылки в AMQP.
//
// События строго наблюдательные: ядро координируется только через
// реляционное хранилище и сигналы процессов, а поток событий служит
// внешним потребителям (дашборды, алертинг). Недоступный брокер не
// мешает работе — воркеры продолжают без публикации, соединение
// переподключается самостоятельно.
package events
