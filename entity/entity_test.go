package entity

import (
	"errors"
	"math"
	"testing"

	perrors "github.com/wippyai/particle-runtime/errors"
)

var testSchema = MustSchema("Sample",
	Field{Name: "txt", Kind: KindText},
	Field{Name: "num", Kind: KindNumber},
	Field{Name: "flg", Kind: KindBoolean},
	Field{Name: "ref", Kind: KindReference},
)

type sample struct{ Record }

func newSample() *sample { return &sample{Record: NewRecord(testSchema)} }

// setField assigns a present value for field i, picking a value that is
// easy to confuse with absence where possible.
func setField(s *sample, i int, variant int) {
	switch i {
	case 0:
		s.SetText(0, []string{"", "abc", "a|b:c", "héllo"}[variant%4])
	case 1:
		s.SetNumber(1, []float64{0, -2.5, 1e21, math.Inf(1)}[variant%4])
	case 2:
		s.SetBool(2, variant%2 == 0)
	case 3:
		s.SetRef(3, []RefValue{{}, {ID: "idX", StorageKey: "keyX"}}[variant%2])
	}
}

func TestRoundTrip_AllPresenceCombinations(t *testing.T) {
	fields := testSchema.Len()
	for mask := 0; mask < 1<<fields; mask++ {
		for variant := 0; variant < 4; variant++ {
			in := newSample()
			if variant%2 == 1 {
				in.SetID("!p:1")
			}
			for i := 0; i < fields; i++ {
				if mask&(1<<i) != 0 {
					setField(in, i, variant)
				}
			}

			enc := Encode(in)
			out := newSample()
			if err := Decode(enc, out); err != nil {
				t.Fatalf("mask %04b variant %d: decode %q failed: %v", mask, variant, enc, err)
			}
			if !Equal(in, out) {
				t.Fatalf("mask %04b variant %d: round trip mismatch\n in: %s\nout: %s", mask, variant, String(in), String(out))
			}
			for i := 0; i < fields; i++ {
				if out.Has(i) != (mask&(1<<i) != 0) {
					t.Fatalf("mask %04b: presence of field %d lost", mask, i)
				}
			}
		}
	}
}

func TestEncode_Layout(t *testing.T) {
	s := newSample()
	if got, want := Encode(s), "0:|0:|0:|0:|0:|"; got != want {
		t.Errorf("empty entity: expected %q, got %q", want, got)
	}

	s.SetID("e1")
	s.SetText(0, "")
	s.SetNumber(1, 3)
	s.SetBool(2, true)
	s.SetRef(3, RefValue{ID: "idX", StorageKey: "keyX"})
	want := "2:e1|1:T|2:N3|2:B1|14:R3:idX|4:keyX||"
	if got := Encode(s); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"truncated", "0:|0:|0:|0:|0:"},
		{"too few fields", "0:|0:|0:|"},
		{"trailing data", "0:|0:|0:|0:|0:|0:|"},
		{"trailing after full record", "3:new|8:Tchanged|3:N42|2:B1|0:|0:|"},
		{"wrong marker", "0:|2:N3|0:|0:|0:|"},
		{"bad number", "0:|0:|3:Nxx|0:|0:|"},
		{"bad boolean", "0:|0:|0:|3:Byy|0:|"},
		{"bad reference", "0:|0:|0:|0:|4:R1:a|"},
		{"length mismatch", "0:|5:Tab|0:|0:|0:|"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSample()
			s.SetID("orig")
			s.SetText(0, "keep")
			want := Encode(s)
			err := Decode(tt.src, s)
			if !errors.Is(err, perrors.ErrMalformedWire) {
				t.Fatalf("expected malformed wire error, got %v", err)
			}
			if got := Encode(s); got != want {
				t.Errorf("failed decode modified the entity: %q, want %q", got, want)
			}
		})
	}
}

func TestString(t *testing.T) {
	s := newSample()
	if got := String(s); got != "{}" {
		t.Errorf("expected {}, got %q", got)
	}

	s.SetID("x")
	s.SetNumber(1, 3)
	s.SetText(0, "abc")
	s.SetRef(3, RefValue{ID: "i", StorageKey: "k"})
	if got, want := String(s), "{x}, txt: abc, num: 3, ref: &<i|k>"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	if String(nil) != "(null)" {
		t.Error("nil entity should render as (null)")
	}
}

func TestRecord_SetByName(t *testing.T) {
	s := newSample()
	if err := s.Set("txt", "hi"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("num", int64(7)); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("flg", true); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("ref", RefValue{ID: "a", StorageKey: "b"}); err != nil {
		t.Fatal(err)
	}
	if s.Text(0) != "hi" || s.Number(1) != 7 || !s.Bool(2) || s.Ref(3).ID != "a" {
		t.Errorf("unexpected record %s", String(s))
	}

	if err := s.Set("num", "seven"); !errors.Is(err, perrors.ErrTypeMismatch) {
		t.Errorf("expected type mismatch, got %v", err)
	}
	if err := s.Set("missing", 1); !errors.Is(err, perrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRecord_ResetAndCopy(t *testing.T) {
	a := newSample()
	a.SetID("a")
	a.SetText(0, "x")

	b := newSample()
	CopyInto(b, a)
	if !Equal(a, b) {
		t.Fatal("CopyInto did not copy")
	}

	a.Reset()
	if a.ID() != "" || a.Has(0) {
		t.Error("Reset left data behind")
	}
	if !b.Has(0) {
		t.Error("Reset affected the copy")
	}
}

func TestNewSchema_Errors(t *testing.T) {
	if _, err := NewSchema(""); err == nil {
		t.Error("expected error for empty schema name")
	}
	if _, err := NewSchema("S", Field{Name: "a", Kind: KindText}, Field{Name: "a", Kind: KindNumber}); err == nil {
		t.Error("expected error for duplicate field")
	}
	if _, err := NewSchema("S", Field{Name: "a"}); err == nil {
		t.Error("expected error for missing kind")
	}
}

func TestCatalog(t *testing.T) {
	c, err := NewCatalog(testSchema)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Register(testSchema); err != nil {
		t.Errorf("re-registering the same schema should be a no-op: %v", err)
	}
	other := MustSchema("Sample", Field{Name: "x", Kind: KindText})
	if err := c.Register(other); err == nil {
		t.Error("expected conflict error")
	}

	s, err := c.Lookup("Sample")
	if err != nil || s != testSchema {
		t.Errorf("Lookup returned %v, %v", s, err)
	}
	if _, err := c.Lookup("Nope"); !errors.Is(err, perrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if names := c.Names(); len(names) != 1 || names[0] != "Sample" {
		t.Errorf("unexpected names %v", names)
	}

	r := NewDynamic(s)
	if r.Schema() != s {
		t.Error("dynamic record has wrong schema")
	}
}
