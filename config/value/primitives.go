package value

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// String is a free-form text value.
type String string

func NewString(p *string, val string) *String {
	*p = val

	return (*String)(p)
}

func (s *String) Set(val string) error {
	*s = String(val)

	return nil
}

func (s *String) String() string  { return string(*s) }
func (s *String) Validate() error { return nil }
func (s *String) IsEmpty() bool   { return len(*s) == 0 }

// Enum is a string that must be one of a fixed set. Values are stored
// lower case.
type Enum struct {
	p       *string
	allowed []string
}

func NewEnum(p *string, val string, allowed []string) *Enum {
	*p = val

	return &Enum{
		p:       p,
		allowed: allowed,
	}
}

func (e *Enum) Set(val string) error {
	*e.p = strings.ToLower(strings.TrimSpace(val))

	return nil
}

func (e *Enum) String() string { return *e.p }
func (e *Enum) IsEmpty() bool  { return len(*e.p) == 0 }

func (e *Enum) Validate() error {
	if slices.Contains(e.allowed, *e.p) {
		return nil
	}

	return fmt.Errorf("'%s' is not one of %s", *e.p, strings.Join(e.allowed, ", "))
}

// StringList is a list of strings, given as one string with a separator.
// Empty elements are dropped.
type StringList struct {
	p         *[]string
	separator string
}

func NewStringList(p *[]string, val []string, separator string) *StringList {
	*p = val

	return &StringList{
		p:         p,
		separator: separator,
	}
}

func (l *StringList) Set(val string) error {
	*l.p = splitList(val, l.separator)

	return nil
}

func (l *StringList) String() string {
	if l.IsEmpty() {
		return "(empty)"
	}

	return strings.Join(*l.p, l.separator)
}

func (l *StringList) Validate() error { return nil }
func (l *StringList) IsEmpty() bool   { return len(*l.p) == 0 }

func splitList(val, separator string) []string {
	fields := strings.Split(val, separator)
	list := make([]string, 0, len(fields))

	for _, f := range fields {
		if f = strings.TrimSpace(f); len(f) != 0 {
			list = append(list, f)
		}
	}

	return list
}

// Bool accepts everything strconv.ParseBool accepts.
type Bool bool

func NewBool(p *bool, val bool) *Bool {
	*p = val

	return (*Bool)(p)
}

func (b *Bool) Set(val string) error {
	v, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return err
	}

	*b = Bool(v)

	return nil
}

func (b *Bool) String() string  { return strconv.FormatBool(bool(*b)) }
func (b *Bool) Validate() error { return nil }
func (b *Bool) IsEmpty() bool   { return !bool(*b) }

type integer interface {
	~int | ~int64
}

// Integer is a signed integer value, optionally limited to a closed range.
type Integer[T integer] struct {
	p       *T
	bounded bool
	min     T
	max     T
}

func NewInt(p *int, val int) *Integer[int] {
	*p = val

	return &Integer[int]{p: p}
}

func NewInt64(p *int64, val int64) *Integer[int64] {
	*p = val

	return &Integer[int64]{p: p}
}

// NewIntRange returns an int value that is valid within [min, max].
func NewIntRange(p *int, val, min, max int) *Integer[int] {
	*p = val

	return &Integer[int]{
		p:       p,
		bounded: true,
		min:     min,
		max:     max,
	}
}

func (i *Integer[T]) Set(val string) error {
	v, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	if err != nil {
		return err
	}

	if int64(T(v)) != v {
		return fmt.Errorf("%s is out of range", val)
	}

	*i.p = T(v)

	return nil
}

func (i *Integer[T]) String() string {
	return strconv.FormatInt(int64(*i.p), 10)
}

func (i *Integer[T]) Validate() error {
	if !i.bounded {
		return nil
	}

	if v := *i.p; v < i.min || v > i.max {
		return fmt.Errorf("%d is not in the range of [%d, %d]", v, i.min, i.max)
	}

	return nil
}

func (i *Integer[T]) IsEmpty() bool {
	return *i.p == 0
}

// Time is a point in time in RFC3339 notation.
type Time time.Time

func NewTime(p *time.Time, val time.Time) *Time {
	*p = val

	return (*Time)(p)
}

func (t *Time) Set(val string) error {
	v, err := time.Parse(time.RFC3339, strings.TrimSpace(val))
	if err != nil {
		return err
	}

	*t = Time(v)

	return nil
}

func (t *Time) String() string  { return time.Time(*t).Format(time.RFC3339) }
func (t *Time) Validate() error { return nil }
func (t *Time) IsEmpty() bool   { return time.Time(*t).IsZero() }
