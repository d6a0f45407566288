package validate

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type ErrField struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

type Errs []ErrField

func (e Errs) Error() string {
	var b strings.Builder
	for i, ef := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ef.Field + ": " + ef.Msg)
	}
	return b.String()
}

// Add appends the non-nil results.
func (e *Errs) Add(fs ...*ErrField) {
	for _, f := range fs {
		if f != nil {
			*e = append(*e, *f)
		}
	}
}

// Err returns nil when nothing was collected.
func (e Errs) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func Required(field, value string) *ErrField {
	if strings.TrimSpace(value) == "" {
		return &ErrField{Field: field, Msg: "required"}
	}
	return nil
}

func MinInt(field string, v, min int64) *ErrField {
	if v < min {
		return &ErrField{Field: field, Msg: "must be >= " + strconv.FormatInt(min, 10)}
	}
	return nil
}

func MaxLen(field, value string, n int) *ErrField {
	if len(value) > n {
		return &ErrField{Field: field, Msg: "must be at most " + strconv.Itoa(n) + " characters"}
	}
	return nil
}

// OneOf allows an empty value; pair it with Required when needed.
func OneOf(field, value string, allowed ...string) *ErrField {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ErrField{Field: field, Msg: "must be one of " + strings.Join(allowed, ", ")}
}

func Positive(field string, v decimal.Decimal) *ErrField {
	if !v.IsPositive() {
		return &ErrField{Field: field, Msg: "must be greater than zero"}
	}
	return nil
}
