package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrNoFreeProxy — в пуле нет свободного здорового прокси.
	ErrNoFreeProxy = errors.New("no free healthy proxy")
)
