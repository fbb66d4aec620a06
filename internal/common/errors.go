// Package common: errors.go определяет типизированные ошибки,
// которые используются во всех модулях сервиса.
// Тип ошибки (Kind) позволяет HTTP-слою выбрать код ответа,
// а сервисам: отличать клиентские ошибки от инфраструктурных.
package common

import (
	"errors"
	"fmt"
)

// Kind: категория ошибки.
type Kind int

const (
	KindInternal      Kind = iota // Непредвиденная ошибка (БД, сеть)
	KindNotFound                  // Сделка / пользователь / пост не найдены
	KindValidation                // Некорректный статус, пустые поля
	KindAuthorization             // Не участник сделки, не админ
	KindConflict                  // Уже разблокировано, дубликат сделки, гонка статусов
	KindUpstream                  // Уведомления / кэш: логируем и глотаем
)

// String возвращает название категории (для логов).
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error: ошибка с категорией.
// Err позволяет обернуть сентинел, чтобы errors.Is продолжал работать
// для сообщений с подставленными значениями.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf возвращает категорию ошибки. Ошибки без категории: KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Wrapf создаёт ошибку той же категории, что и sentinel, с уточнённым текстом.
// errors.Is(result, sentinel) == true.
func Wrapf(sentinel *Error, format string, args ...any) error {
	return &Error{Kind: sentinel.Kind, Msg: fmt.Sprintf(format, args...), Err: sentinel}
}

func newErr(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// Ошибки сделок
var (
	// ErrDealNotFound: сделки нет, она неактивна или пользователь не её участник
	ErrDealNotFound = newErr(KindNotFound, "сделка не найдена или у вас нет к ней доступа")
	// ErrInvalidTransition: переход не разрешён графом статусов
	ErrInvalidTransition = newErr(KindValidation, "недопустимый переход статуса")
	// ErrMissingField: не заполнено обязательное поле запроса
	ErrMissingField = newErr(KindValidation, "не заполнены обязательные поля")
	// ErrInvalidStatus: неизвестный статус в запросе
	ErrInvalidStatus = newErr(KindValidation, "неизвестный статус сделки")
	// ErrDealExists: сделка для пары (пост, покупатель) уже существует
	ErrDealExists = newErr(KindConflict, "сделка для этого поста уже существует")
	// ErrDealAlreadyClosed: сделка уже закрыта
	ErrDealAlreadyClosed = newErr(KindConflict, "сделка уже закрыта")
	// ErrInvalidRole: неизвестная роль в фильтре
	ErrInvalidRole = newErr(KindValidation, "роль должна быть unlocker или author")
	// ErrStaleDeal: статус сделки изменился параллельно
	ErrStaleDeal = newErr(KindConflict, "статус сделки уже изменён, обновите данные")
)

// Ошибки пользователей и кредитов
var (
	// ErrUserNotFound: пользователь не найден в базе
	ErrUserNotFound = newErr(KindNotFound, "пользователь не найден")
	// ErrInsufficientCredits: недостаточно кредитов нужного типа
	ErrInsufficientCredits = newErr(KindAuthorization, "недостаточно кредитов, приобретите тариф")
	// ErrSubscriptionExpired: подписка истекла
	ErrSubscriptionExpired = newErr(KindAuthorization, "подписка истекла, продлите её, чтобы продолжить")
	// ErrInvalidAmount: сумма должна быть положительной
	ErrInvalidAmount = newErr(KindValidation, "сумма должна быть положительной")
	// ErrInvalidCreditType: неизвестный тип кредитов
	ErrInvalidCreditType = newErr(KindValidation, "неизвестный тип кредитов")
)

// Ошибки постов
var (
	// ErrPostNotFound: пост не найден
	ErrPostNotFound = newErr(KindNotFound, "пост не найден")
	// ErrAuthorUnavailable: автор поста удалён или деактивирован
	ErrAuthorUnavailable = newErr(KindNotFound, "владелец поста недоступен")
	// ErrOwnPostUnlock: попытка разблокировать собственный пост
	ErrOwnPostUnlock = newErr(KindValidation, "нельзя разблокировать собственный пост, он уже открыт для вас")
	// ErrAlreadyUnlocked: пост уже разблокирован этим пользователем
	ErrAlreadyUnlocked = newErr(KindConflict, "вы уже разблокировали этот пост")
	// ErrNotPostOwner: действие доступно только владельцу поста
	ErrNotPostOwner = newErr(KindAuthorization, "действие доступно только владельцу поста")
	// ErrInvalidToggle: неизвестное значение переключателя сделки
	ErrInvalidToggle = newErr(KindValidation, "статус должен быть Pending, Success или Fail")
)

// Ошибки админки
var (
	// ErrNotAdmin: пользователь не является администратором
	ErrNotAdmin = newErr(KindAuthorization, "у вас нет прав администратора")
	// ErrWrongToken: неверный токен администратора
	ErrWrongToken = newErr(KindAuthorization, "неверный токен администратора")
	// ErrTooManyAttempts: слишком много неудачных попыток входа
	ErrTooManyAttempts = newErr(KindAuthorization, "слишком много попыток, подождите 1 час")
	// ErrUnauthenticated: запрос без идентификатора пользователя
	ErrUnauthenticated = newErr(KindAuthorization, "требуется авторизация")
)
