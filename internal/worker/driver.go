package worker

import (
	"context"
	"fmt"

	"github.com/Stepan2222000/don/internal/domain"
)

// Driver — непрозрачный контракт отправки во внешний сервис.
//
// Ядро не знает протокола: драйвер сам классифицирует свои наблюдения
// в теги domain.OutcomeKind. Браузерная реализация подключается
// отдельной сборкой через RegisterDriver.
type Driver interface {
	// Open открывает сессию для профиля через указанный прокси.
	Open(ctx context.Context, profile *domain.Profile, proxyURL string) (Session, error)
}

// Session — открытая сессия драйвера.
type Session interface {
	// Send доставляет текст в чат и возвращает тегированный исход.
	// Ошибка означает инфраструктурный сбой самого драйвера;
	// классифицируемые неудачи приходят как Outcome.
	Send(ctx context.Context, chatRef, text string) (domain.Outcome, error)

	// Close закрывает сессию.
	Close(ctx context.Context) error
}

// DriverFactory создаёт драйвер.
type DriverFactory func() Driver

var driverRegistry = map[string]DriverFactory{}

// RegisterDriver регистрирует фабрику драйвера под именем.
func RegisterDriver(name string, factory DriverFactory) {
	driverRegistry[name] = factory
}

// NewDriver создаёт зарегистрированный драйвер по имени.
func NewDriver(name string) (Driver, error) {
	factory, ok := driverRegistry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, name)
	}
	return factory(), nil
}
