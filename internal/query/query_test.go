package query

import (
	"errors"
	"net/url"
	"testing"
)

func TestNormalizeMakesEqualInputsCompareEqual(t *testing.T) {
	a := Descriptor{Search: "  kitchen "}.Normalize()
	b := Descriptor{Search: "kitchen", Sort: "DESC", Scope: "Mine"}.Normalize()
	if a != b {
		t.Fatalf("expected equal descriptors, got %+v and %+v", a, b)
	}
	if a != (Descriptor{Search: "kitchen", Sort: Desc, Scope: Mine}) {
		t.Errorf("unexpected defaults: %+v", a)
	}
}

func TestDescriptorEqualityIsStructural(t *testing.T) {
	a := Default()
	b := Default()
	if a != b {
		t.Fatal("expected defaults to be equal")
	}
	b.Range = DateRange{Start: "2024-01-01", End: "2024-01-31"}
	if a == b {
		t.Error("expected range change to break equality")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
		ok   bool
	}{
		{"default", Default(), true},
		{"asc all", Descriptor{Sort: Asc, Scope: All}, true},
		{"bad sort", Descriptor{Sort: "sideways", Scope: Mine}, false},
		{"bad scope", Descriptor{Sort: Desc, Scope: "team"}, false},
		{"half range", Descriptor{Sort: Desc, Scope: Mine, Range: DateRange{Start: "2024-01-01"}}, false},
		{"bad date", Descriptor{Sort: Desc, Scope: Mine, Range: DateRange{Start: "2024-13-01", End: "2024-12-01"}}, false},
		{"inverted", Descriptor{Sort: Desc, Scope: Mine, Range: DateRange{Start: "2024-02-01", End: "2024-01-01"}}, false},
		{"single day", Descriptor{Sort: Desc, Scope: Mine, Range: DateRange{Start: "2024-02-01", End: "2024-02-01"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrInvalid) {
					t.Errorf("expected ErrInvalid, got %v", err)
				}
			}
		})
	}
}

func TestValuesAndParse(t *testing.T) {
	d := Descriptor{
		Search: "bakery",
		Sort:   Asc,
		Scope:  All,
		Range:  DateRange{Start: "2024-03-01", End: "2024-03-31"},
	}
	v := d.Values()
	if v.Get("onlyMine") != "false" || v.Get("order") != "asc" || v.Get("startDate") != "2024-03-01" {
		t.Fatalf("unexpected values: %v", v)
	}
	got, err := Parse(v)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != d {
		t.Errorf("expected %+v, got %+v", d, got)
	}
}

func TestParseDefaults(t *testing.T) {
	got, err := Parse(url.Values{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != Default() {
		t.Errorf("expected default descriptor, got %+v", got)
	}

	// A single date bound is ignored, matching the list endpoint.
	got, err = Parse(url.Values{"startDate": {"2024-01-01"}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Range.IsZero() {
		t.Errorf("expected no range, got %+v", got.Range)
	}

	if _, err := Parse(url.Values{"onlyMine": {"maybe"}}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestKeyIsStable(t *testing.T) {
	a := Descriptor{Search: "x", Sort: Desc, Scope: Mine}
	b := Descriptor{Scope: Mine, Sort: Desc, Search: "x"}
	if a.Key() != b.Key() {
		t.Errorf("expected equal keys: %q vs %q", a.Key(), b.Key())
	}
	if a.Key() == Default().Key() {
		t.Error("expected different keys for different descriptors")
	}
}
