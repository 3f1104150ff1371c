package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Status задаёт статус подписки.
type Status uint8

// Возможные статусы подписки. Нулевое значение не является валидным статусом.
const (
	StatusUnknown Status = iota
	StatusActive
	StatusCancelled
	StatusExpired
)

var statusNames = map[Status]string{
	StatusActive:    "active",
	StatusCancelled: "cancelled",
	StatusExpired:   "expired",
}

// Tier задаёт ценовую категорию тарифа.
type Tier uint8

// Возможные категории тарифа.
const (
	TierUnknown Tier = iota
	TierFree
	TierBasic
	TierPro
)

var tierNames = map[Tier]string{
	TierFree:  "free",
	TierBasic: "basic",
	TierPro:   "pro",
}

// Mode задаёт режим работы пользователя.
// Пользователи в режиме SIMULATION не могут иметь реальных подписок.
type Mode uint8

// Возможные режимы пользователя.
const (
	ModeUnknown Mode = iota
	ModeLive
	ModeSimulation
)

var modeNames = map[Mode]string{
	ModeLive:       "live",
	ModeSimulation: "simulation",
}

func (s Status) String() string { return enumString(statusNames, s) }
func (t Tier) String() string   { return enumString(tierNames, t) }
func (m Mode) String() string   { return enumString(modeNames, m) }

// Valid сообщает, является ли значение допустимым статусом.
func (s Status) Valid() bool { _, ok := statusNames[s]; return ok }

// Valid сообщает, является ли значение допустимой категорией тарифа.
func (t Tier) Valid() bool { _, ok := tierNames[t]; return ok }

// Valid сообщает, является ли значение допустимым режимом пользователя.
func (m Mode) Valid() bool { _, ok := modeNames[m]; return ok }

// ParseStatus разбирает строковое представление статуса (регистр не важен).
func ParseStatus(v string) (Status, error) { return parseEnum("status", statusNames, v) }

// ParseTier разбирает строковое представление категории тарифа.
func ParseTier(v string) (Tier, error) { return parseEnum("tier", tierNames, v) }

// ParseMode разбирает строковое представление режима пользователя.
func ParseMode(v string) (Mode, error) { return parseEnum("mode", modeNames, v) }

// Statuses возвращает все валидные статусы в порядке объявления.
func Statuses() []Status { return []Status{StatusActive, StatusCancelled, StatusExpired} }

// MarshalText кодирует статус в строку; используется и в JSON, и в ключах map.
func (s Status) MarshalText() ([]byte, error) { return marshalEnum("status", statusNames, s) }

// UnmarshalText декодирует статус из строки.
func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Value реализует driver.Valuer: в БД статус хранится строкой.
func (s Status) Value() (driver.Value, error) { return valueEnum("status", statusNames, s) }

// Scan реализует sql.Scanner.
func (s *Status) Scan(src any) error {
	v, err := scanEnum("status", statusNames, src)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (t Tier) MarshalText() ([]byte, error) { return marshalEnum("tier", tierNames, t) }

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t Tier) Value() (driver.Value, error) { return valueEnum("tier", tierNames, t) }

func (t *Tier) Scan(src any) error {
	v, err := scanEnum("tier", tierNames, src)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (m Mode) MarshalText() ([]byte, error) { return marshalEnum("mode", modeNames, m) }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m Mode) Value() (driver.Value, error) { return valueEnum("mode", modeNames, m) }

func (m *Mode) Scan(src any) error {
	v, err := scanEnum("mode", modeNames, src)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func enumString[T ~uint8](names map[T]string, v T) string {
	if name, ok := names[v]; ok {
		return name
	}
	return "unknown"
}

func parseEnum[T ~uint8](kind string, names map[T]string, raw string) (T, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for v, name := range names {
		if name == raw {
			return v, nil
		}
	}
	return 0, fmt.Errorf("invalid %s %q", kind, raw)
}

func marshalEnum[T ~uint8](kind string, names map[T]string, v T) ([]byte, error) {
	name, ok := names[v]
	if !ok {
		return nil, fmt.Errorf("invalid %s value %d", kind, v)
	}
	return []byte(name), nil
}

func valueEnum[T ~uint8](kind string, names map[T]string, v T) (driver.Value, error) {
	name, ok := names[v]
	if !ok {
		return nil, fmt.Errorf("invalid %s value %d", kind, v)
	}
	return name, nil
}

func scanEnum[T ~uint8](kind string, names map[T]string, src any) (T, error) {
	switch v := src.(type) {
	case string:
		return parseEnum(kind, names, v)
	case []byte:
		return parseEnum(kind, names, string(v))
	default:
		return 0, fmt.Errorf("cannot scan %T into %s", src, kind)
	}
}
