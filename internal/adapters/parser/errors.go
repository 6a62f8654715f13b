package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData - на вход пришел nil.
	ErrNoData = errors.New("no data to parse")
	// ErrNotObject - верхний уровень JSON не объект.
	ErrNotObject = errors.New("invalid json format")
	// ErrAPIResponse - API вернуло объект ошибки вида {"message": ...}.
	ErrAPIResponse = errors.New("failed to get widget json")
	// ErrMalformed - обязательное поле отсутствует или имеет неверный тип.
	ErrMalformed = errors.New("failed to parse widget json")
)

// ParseError - типизированная ошибка разбора с путем к проблемному полю.
type ParseError struct {
	Kind error
	// Path в формате "members[2].game.name". Пустой для ошибок верхнего уровня.
	Path string
	// APIMessage заполняется только для ErrAPIResponse.
	APIMessage string
	// APICode - код ошибки API, если он был в ответе.
	APICode int
	Err     error
}

func (e *ParseError) Error() string {
	switch {
	case e.APIMessage != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.APIMessage)
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// fieldError - ошибка конкретного поля до оборачивания в ParseError.
type fieldError struct {
	path string
	err  error
}

func (e *fieldError) Error() string {
	return e.path + ": " + e.err.Error()
}

func (e *fieldError) Unwrap() error {
	return e.err
}

func atPath(path string, err error) error {
	var fe *fieldError
	if errors.As(err, &fe) {
		return &fieldError{path: path + "." + fe.path, err: fe.err}
	}
	return &fieldError{path: path, err: err}
}

var (
	errMissing   = errors.New("missing required field")
	errWrongType = errors.New("unexpected type")
)
