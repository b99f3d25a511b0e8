// Package query defines the descriptor that identifies which records a list
// view shows: search text, sort order, date range and scope.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DateLayout is the wire format for date range bounds.
const DateLayout = "2006-01-02"

// ErrInvalid is wrapped by every validation error returned from this package.
var ErrInvalid = errors.New("invalid query")

// SortOrder is the server-side ordering of a list.
type SortOrder string

const (
	Desc SortOrder = "desc"
	Asc  SortOrder = "asc"
)

// Scope restricts a list to the caller's own records or everything.
type Scope string

const (
	Mine Scope = "mine"
	All  Scope = "all"
)

// DateRange is an inclusive range of YYYY-MM-DD dates. The zero value means
// no date filter.
type DateRange struct {
	Start string
	End   string
}

// IsZero reports whether the range is unset.
func (r DateRange) IsZero() bool {
	return r.Start == "" && r.End == ""
}

// Descriptor is the complete set of filter, sort and search criteria for a
// list. It is comparable with ==; two descriptors are equal iff every field
// matches, so callers should Normalize before comparing user input.
type Descriptor struct {
	Search string
	Sort   SortOrder
	Range  DateRange
	Scope  Scope
}

// Default returns the descriptor a freshly mounted view starts with.
func Default() Descriptor {
	return Descriptor{Sort: Desc, Scope: Mine}
}

// Normalize fills defaults and trims the search text.
func (d Descriptor) Normalize() Descriptor {
	d.Search = strings.TrimSpace(d.Search)
	d.Sort = SortOrder(strings.ToLower(string(d.Sort)))
	if d.Sort == "" {
		d.Sort = Desc
	}
	d.Scope = Scope(strings.ToLower(string(d.Scope)))
	if d.Scope == "" {
		d.Scope = Mine
	}
	d.Range.Start = strings.TrimSpace(d.Range.Start)
	d.Range.End = strings.TrimSpace(d.Range.End)
	return d
}

// Validate checks field values. It does not normalize.
func (d Descriptor) Validate() error {
	switch d.Sort {
	case Asc, Desc:
	default:
		return fmt.Errorf("%w: sort order %q", ErrInvalid, d.Sort)
	}
	switch d.Scope {
	case Mine, All:
	default:
		return fmt.Errorf("%w: scope %q", ErrInvalid, d.Scope)
	}
	if d.Range.IsZero() {
		return nil
	}
	if d.Range.Start == "" || d.Range.End == "" {
		return fmt.Errorf("%w: date range needs both start and end", ErrInvalid)
	}
	start, err := time.Parse(DateLayout, d.Range.Start)
	if err != nil {
		return fmt.Errorf("%w: start date %q", ErrInvalid, d.Range.Start)
	}
	end, err := time.Parse(DateLayout, d.Range.End)
	if err != nil {
		return fmt.Errorf("%w: end date %q", ErrInvalid, d.Range.End)
	}
	if start.After(end) {
		return fmt.Errorf("%w: start date %s after end date %s", ErrInvalid, d.Range.Start, d.Range.End)
	}
	return nil
}

// Values serializes the descriptor as query parameters understood by the
// CRM list endpoints.
func (d Descriptor) Values() url.Values {
	v := url.Values{}
	if d.Search != "" {
		v.Set("search", d.Search)
	}
	if d.Sort != "" {
		v.Set("order", string(d.Sort))
	}
	if d.Scope == All {
		v.Set("onlyMine", "false")
	} else {
		v.Set("onlyMine", "true")
	}
	if d.Range.Start != "" && d.Range.End != "" {
		v.Set("startDate", d.Range.Start)
		v.Set("endDate", d.Range.End)
	}
	return v
}

// Parse reads a descriptor from query parameters. Missing values take the
// backend defaults: order desc, onlyMine true. A date range is only applied
// when both ends are present. The result is normalized and validated.
func Parse(v url.Values) (Descriptor, error) {
	d := Descriptor{
		Search: v.Get("search"),
		Sort:   SortOrder(v.Get("order")),
		Scope:  Mine,
	}
	if d.Sort == "" {
		d.Sort = SortOrder(v.Get("sort"))
	}
	switch strings.ToLower(v.Get("onlyMine")) {
	case "", "true", "1":
	case "false", "0":
		d.Scope = All
	default:
		return Descriptor{}, fmt.Errorf("%w: onlyMine %q", ErrInvalid, v.Get("onlyMine"))
	}
	if start, end := v.Get("startDate"), v.Get("endDate"); start != "" && end != "" {
		d.Range = DateRange{Start: start, End: end}
	}
	d = d.Normalize()
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// Key returns a stable string form of the descriptor, suitable as a cache key.
func (d Descriptor) Key() string {
	return d.Values().Encode()
}

func (d Descriptor) String() string {
	return d.Key()
}
