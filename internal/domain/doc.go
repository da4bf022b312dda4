// Package domain содержит доменные типы системы: профили, задачи,
// сообщения, прокси и результаты отправки (Outcome).
//
// Типы в этом пакете не зависят от хранилища и транспорта —
// репозитории и воркеры оперируют ими напрямую.
package domain
