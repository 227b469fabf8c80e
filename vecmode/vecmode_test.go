package vecmode

import (
	"reflect"
	"testing"

	"github.com/SciCompKL/CoDiPack-sub001/adjoint"
)

func TestIdentitySeeds(t *testing.T) {
	got := IdentitySeeds(3)
	want := [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("IdentitySeeds(3) = %v, want %v", got, want)
	}
}

func TestSeedOutput(t *testing.T) {
	v := adjoint.New(2)
	SeedOutput(v, 1, []float64{1, 2})
	SeedOutput(v, 3, []float64{3, 4})

	if got := v.Slot(1); !reflect.DeepEqual(got, []float64{1, 2}) {
		t.Errorf("Slot(1) = %v, want [1 2]", got)
	}
	if got := v.Slot(3); !reflect.DeepEqual(got, []float64{3, 4}) {
		t.Errorf("Slot(3) = %v, want [3 4]", got)
	}
	if got := v.Slot(0); !reflect.DeepEqual(got, []float64{0, 0}) {
		t.Errorf("Slot(0) = %v, want [0 0], the inactive identifier is never seeded", got)
	}
}

func TestSeedOutputBroadcastEquivalence(t *testing.T) {
	seeds := IdentitySeeds(2)
	v := adjoint.New(2)
	SeedOutput(v, 5, seeds[0])
	v.Grow(8)
	v.AddScaled(7, 2, seeds[1])

	if got := v.Slot(5); !reflect.DeepEqual(got, []float64{1, 0}) {
		t.Errorf("Slot(5) = %v, want [1 0]", got)
	}
	if got := v.Slot(7); !reflect.DeepEqual(got, []float64{0, 2}) {
		t.Errorf("Slot(7) = %v, want [0 2]", got)
	}
}
