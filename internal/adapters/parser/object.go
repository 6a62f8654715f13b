package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/samber/mo"
)

// object - JSON-объект с типизированными геттерами.
type object map[string]any

func asObject(value any) (object, bool) {
	switch v := value.(type) {
	case map[string]any:
		return object(v), true
	case object:
		return v, true
	}
	return nil, false
}

func (o object) has(key string) bool {
	_, ok := o[key]
	return ok
}

func (o object) get(key string) (any, error) {
	value, ok := o[key]
	if !ok {
		return nil, &fieldError{path: key, err: errMissing}
	}
	return value, nil
}

func (o object) getInt64(key string) (int64, error) {
	value, err := o.get(key)
	if err != nil {
		return 0, err
	}
	n, err := toInt64(value)
	if err != nil {
		return 0, &fieldError{path: key, err: err}
	}
	return n, nil
}

func (o object) getInt(key string) (int, error) {
	n, err := o.getInt64(key)
	if err != nil {
		return 0, err
	}
	if n < math.MinInt || n > math.MaxInt {
		return 0, &fieldError{path: key, err: fmt.Errorf("value %d out of range", n)}
	}
	return int(n), nil
}

func (o object) getString(key string) (string, error) {
	value, err := o.get(key)
	if err != nil {
		return "", err
	}
	s, ok := value.(string)
	if !ok {
		return "", &fieldError{path: key, err: wrongType("string", value)}
	}
	return s, nil
}

// getNullableString требует наличия ключа, но допускает null.
func (o object) getNullableString(key string) (mo.Option[string], error) {
	value, err := o.get(key)
	if err != nil {
		return mo.None[string](), err
	}
	if value == nil {
		return mo.None[string](), nil
	}
	s, ok := value.(string)
	if !ok {
		return mo.None[string](), &fieldError{path: key, err: wrongType("string", value)}
	}
	return mo.Some(s), nil
}

// optionalBool возвращает None, если ключа нет или значение null.
func (o object) optionalBool(key string) (mo.Option[bool], error) {
	value, ok := o[key]
	if !ok || value == nil {
		return mo.None[bool](), nil
	}
	b, ok := value.(bool)
	if !ok {
		return mo.None[bool](), &fieldError{path: key, err: wrongType("bool", value)}
	}
	return mo.Some(b), nil
}

func (o object) optionalInt64(key string) (mo.Option[int64], error) {
	value, ok := o[key]
	if !ok || value == nil {
		return mo.None[int64](), nil
	}
	n, err := toInt64(value)
	if err != nil {
		return mo.None[int64](), &fieldError{path: key, err: err}
	}
	return mo.Some(n), nil
}

// optionalArray: отсутствующий ключ или null дают пустой срез, не массив - ошибку.
func (o object) optionalArray(key string) ([]any, error) {
	value, ok := o[key]
	if !ok || value == nil {
		return nil, nil
	}
	a, ok := value.([]any)
	if !ok {
		return nil, &fieldError{path: key, err: wrongType("array", value)}
	}
	return a, nil
}

// toInt64 приводит число или числовую строку к int64.
// Discord отдает snowflake ID строками, остальные целые - числами.
func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid number %q: %w", v, err)
		}
		return floatToInt64(f)
	case float64:
		return floatToInt64(v)
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q: %w", v, err)
		}
		return n, nil
	}
	return 0, wrongType("integer", value)
}

func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}
	return int64(f), nil
}

func wrongType(expected string, value any) error {
	if value == nil {
		return fmt.Errorf("%w: expected %s, got null", errWrongType, expected)
	}
	return fmt.Errorf("%w: expected %s, got %T", errWrongType, expected, value)
}
