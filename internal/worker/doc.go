// Package worker — цикл обработки задач одним профилем.
//
// Воркер связывает один Profile, одну сессию запуска (run_id), очередь
// задач, реестр прокси и непрозрачный драйвер отправки. Внутри воркер
// однопоточен: одна внешняя отправка за раз, перемежаемая ограниченными
// паузами. Воркеры общаются с супервизором только кодами выхода.
package worker
