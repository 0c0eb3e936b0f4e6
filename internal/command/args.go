package command

import (
	"bytes"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Args is the flat argument object of one invocation. Keys are stored in
// snake_case whatever the caller sent.
type Args map[string]jsoniter.RawMessage

// ParseArgs decodes a raw argument object. An empty body or JSON null yields
// empty Args. When both spellings of a key are present the snake_case one wins.
func ParseArgs(raw []byte) (Args, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Args{}, nil
	}

	var in map[string]jsoniter.RawMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, invalidArgument("arguments must be a JSON object", err)
	}

	args := make(Args, len(in))
	for key, value := range in {
		snake := SnakeCase(key)
		if snake != key {
			if _, taken := in[snake]; taken {
				continue
			}
		}
		args[snake] = value
	}
	return args, nil
}

// SnakeCase converts camelCase or PascalCase keys. Keys that are already
// snake_case come back unchanged.
func SnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prev != '_' && (unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower)) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Bind decodes the arguments into a T and runs its validate tags.
func Bind[T any](args Args) (*T, error) {
	out := new(T)

	if len(args) > 0 {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, invalidArgument("invalid arguments", err)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, invalidArgument("invalid arguments", err)
		}
	}

	if err := validate.Struct(out); err != nil {
		return nil, validationError(err)
	}
	return out, nil
}

func validationError(err error) *Error {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return invalidArgument("invalid arguments", err)
	}

	details := make(map[string]string, len(ve))
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		details[fe.Field()] = fe.Tag()
		fields = append(fields, fe.Field())
	}

	return &Error{
		Code:    CodeInvalidArgument,
		Message: "validation failed: " + strings.Join(fields, ", "),
		Details: details,
		Err:     err,
	}
}
