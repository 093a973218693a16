package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Options customises Decode.
type Options struct {
	// WeaklyTypedInput lets mapstructure convert between any scalar kinds
	// (true -> 1, 123 -> "123"). Off by default: wire input must carry the
	// declared types, except integer fields, which also take numeric strings.
	WeaklyTypedInput bool
}

func DefaultOptions() Options {
	return Options{}
}

func WithWeaklyTypedInput(v bool) Options {
	return Options{WeaklyTypedInput: v}
}

// DecodeMap decodes a generic JSON object into T using the `json` tags of T.
func DecodeMap[T any](m map[string]any, opts ...Options) (*T, error) {
	if m == nil {
		return nil, fmt.Errorf("map is nil")
	}

	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}

	var out T
	decCfg := &mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			jsonNumberHook(cfg.WeaklyTypedInput),
			integralFloatHook(),
			numericStringHook(),
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	}

	dec, err := mapstructure.NewDecoder(decCfg)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode struct: %w", err)
	}
	return &out, nil
}

// DecodeJSON decodes raw into a generic object, then decodes it like DecodeMap.
func DecodeJSON[T any](raw []byte, opts ...Options) (*T, error) {
	m, err := UnmarshalObject(raw)
	if err != nil {
		return nil, err
	}
	return DecodeMap[T](m, opts...)
}

// UnmarshalObject parses a single JSON object. Numbers stay json.Number so
// 64-bit ids keep every digit.
func UnmarshalObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("unmarshal: not an object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unmarshal: trailing data")
	}
	return m, nil
}

// ReadString reads a string field from a generic object.
func ReadString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q not string (got %T)", key, v)
	}
	return s, nil
}

var (
	stringType     = reflect.TypeOf("")
	jsonNumberType = reflect.TypeOf(json.Number(""))
)

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

// integralFloatHook rejects 5.5 for integer targets instead of truncating it.
func integralFloatHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.Float64 || !isInt(to.Kind()) {
			return data, nil
		}
		f := data.(float64)
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("expected integer, got %v", f)
		}
		return int64(f), nil
	}
}

// numericStringHook accepts "123" for integer fields. Other string to number
// conversions stay errors.
func numericStringHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data any) (any, error) {
		if from != stringType || !isInt(to.Kind()) {
			return data, nil
		}
		n, err := strconv.ParseInt(data.(string), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %q", data)
		}
		return n, nil
	}
}

// jsonNumberHook converts json.Number for numeric targets. Unless weak, it
// refuses it for string targets, where mapstructure would otherwise take it
// as a plain string.
func jsonNumberHook(weak bool) mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data any) (any, error) {
		if from != jsonNumberType {
			return data, nil
		}
		n := data.(json.Number)
		switch {
		case isInt(to.Kind()):
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
			f, err := n.Float64()
			if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
				return nil, fmt.Errorf("expected integer, got %s", n)
			}
			return int64(f), nil
		case to.Kind() == reflect.Float32 || to.Kind() == reflect.Float64:
			return n.Float64()
		case to.Kind() == reflect.String && weak:
			return n.String(), nil
		case to.Kind() == reflect.String:
			return nil, fmt.Errorf("expected string, got number %s", n)
		}
		return data, nil
	}
}
