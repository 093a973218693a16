package errs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Wire codes sent back to clients in error frames.
const (
	CodeProtocol      = "protocol"
	CodeUnauthorized  = "unauthorized"
	CodeNotFound      = "not_found"
	CodeDeadCharacter = "dead_character"
	CodeInternal      = "internal"
)

const (
	ProtocolError       = 1001
	UnauthorizedError   = 1002
	NotFoundError       = 1003
	DeadCharacterError  = 1004
	ServerInternalError = 1500
)

var (
	ErrProtocol      = NewCodeError(ProtocolError, "malformed frame")
	ErrUnauthorized  = NewCodeError(UnauthorizedError, "not allowed")
	ErrNotFound      = NewCodeError(NotFoundError, "not found")
	ErrDeadCharacter = NewCodeError(DeadCharacterError, "character is dead")
	ErrInternal      = NewCodeError(ServerInternalError, "internal error")
)

// DefaultCodeRelation makes NotFoundError satisfy Is(UnauthorizedError).
var DefaultCodeRelation = newCodeRelation()

func init() {
	_ = DefaultCodeRelation.Add(UnauthorizedError, NotFoundError)
	_ = DefaultCodeRelation.Add(UnauthorizedError, DeadCharacterError)
}

func NewCodeError(code int, msg string) CodeError {
	return CodeError{
		Code: code,
		Msg:  msg,
	}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e *CodeError) WithDetail(detail string) CodeError {
	var d string
	if e.Detail == "" {
		d = detail
	} else {
		d = e.Detail + ", " + detail
	}
	return CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: d,
	}
}

// Wrap attaches a stack trace.
func (e *CodeError) Wrap() error {
	return pkgerrors.WithStack(e.clone())
}

func (e *CodeError) clone() *CodeError {
	return &CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: e.Detail,
	}
}

func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	retErr := e.clone()
	if msg != "" || len(kv) > 0 {
		detail := toString(msg, kv)
		if retErr.Detail == "" {
			retErr.Detail = detail
		} else {
			retErr.Detail += ", " + detail
		}
	}
	return pkgerrors.WithStack(retErr)
}

func (e *CodeError) Is(err error) bool {
	var codeErr *CodeError
	if !errors.As(err, &codeErr) {
		return err == nil && e == nil
	}
	if e == nil {
		return false
	}
	if e.Code == codeErr.Code {
		return true
	}
	return DefaultCodeRelation.Is(e.Code, codeErr.Code)
}

const initialCapacity = 3

func (e *CodeError) Error() string {
	v := make([]string, 0, initialCapacity)
	v = append(v, strconv.Itoa(e.Code), e.Msg)

	if e.Detail != "" {
		v = append(v, e.Detail)
	}

	return strings.Join(v, " ")
}

// WireCode maps the numeric code to the string sent to clients.
func (e *CodeError) WireCode() string {
	switch e.Code {
	case ProtocolError:
		return CodeProtocol
	case UnauthorizedError:
		return CodeUnauthorized
	case NotFoundError:
		return CodeNotFound
	case DeadCharacterError:
		return CodeDeadCharacter
	default:
		return CodeInternal
	}
}

// Message is the client facing text: Msg, or Detail when one was attached.
func (e *CodeError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Msg
}

// AsCode extracts a CodeError from err. Unknown errors become ErrInternal.
func AsCode(err error) *CodeError {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr
	}
	return ErrInternal.clone()
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(err)
}

func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, toString(msg, kv))
}

func New(msg string, kv ...any) error {
	return pkgerrors.New(toString(msg, kv))
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprint(kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprint(kv[i+1]))
		} else {
			sb.WriteString("MISSING")
		}
	}
	return sb.String()
}

type CodeRelation interface {
	Add(codes ...int) error
	Is(parent, child int) bool
}

func newCodeRelation() CodeRelation {
	return &codeRelation{m: make(map[int]map[int]struct{})}
}

type codeRelation struct {
	m map[int]map[int]struct{}
}

const minimumCodesLength = 2

func (r *codeRelation) Add(codes ...int) error {
	if len(codes) < minimumCodesLength {
		return New("codes length must be greater than 2", "codes", codes)
	}
	for i := 1; i < len(codes); i++ {
		parent := codes[i-1]
		s, ok := r.m[parent]
		if !ok {
			s = make(map[int]struct{})
			r.m[parent] = s
		}
		for _, code := range codes[i:] {
			s[code] = struct{}{}
		}
	}
	return nil
}

func (r *codeRelation) Is(parent, child int) bool {
	if parent == child {
		return true
	}
	s, ok := r.m[parent]
	if !ok {
		return false
	}
	_, ok = s[child]
	return ok
}
