// Package supervisor — жизненный цикл воркеров под одной сессией запуска.
//
// Каждый воркер — отдельный процесс: падение драйвера не может
// разрушить состояние соседей. Супервизор и воркеры общаются только
// сигналами ОС, кодами выхода и реляционным хранилищем.
package supervisor
