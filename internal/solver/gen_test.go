package solver

import (
	"reflect"
	"testing"
)

func TestGenerateReproducible(t *testing.T) {
	spec := GenSpec{N: 20, Seed: 42, Capacity: 100, Vehicles: 5, TimeWindows: true}
	a, _, err := Generate(spec)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, _, err := Generate(spec)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !reflect.DeepEqual(a.Customers, b.Customers) {
		t.Fatal("same seed produced different instances")
	}
}

func TestGenerateBounds(t *testing.T) {
	in, m, err := Generate(GenSpec{N: 50, Seed: 1, Capacity: 100, Vehicles: 10})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(in.Customers) != 50 {
		t.Fatalf("want 50 customers, got %d", len(in.Customers))
	}
	for _, c := range in.Customers {
		if c.X < 0 || c.X >= 100 || c.Y < 0 || c.Y >= 100 {
			t.Fatalf("coordinate out of range: %+v", c)
		}
		if c.Demand < 1 || c.Demand >= 20 {
			t.Fatalf("demand out of range: %+v", c)
		}
		if c.TW != nil {
			t.Fatalf("unexpected time window: %+v", c)
		}
	}
	if len(m) != 51 || len(m[0]) != 51 {
		t.Fatalf("matrix shape %dx%d", len(m), len(m[0]))
	}
	if m[1][2] != m[2][1] {
		t.Fatal("matrix not symmetric")
	}
}
