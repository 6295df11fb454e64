package bridge

import "testing"

func TestRegistryNeverReusesIDs(t *testing.T) {
	r := newRegistry()
	a, b := &simple{}, &simple{}

	idA, isNew := r.Assign(a)
	if idA != 1 || !isNew {
		t.Fatalf("Assign(a) = %d, %v; want 1, true", idA, isNew)
	}
	if id, isNew := r.Assign(a); id != idA || isNew {
		t.Errorf("second Assign(a) = %d, %v; want %d, false", id, isNew, idA)
	}

	r.Remove(idA)
	if _, ok := r.Lookup(idA); ok {
		t.Error("Lookup() found a removed object")
	}
	if _, ok := r.IDOf(a); ok {
		t.Error("IDOf() found a removed object")
	}

	idB, _ := r.Assign(b)
	if idB != 2 {
		t.Errorf("Assign(b) = %d, want 2", idB)
	}
	if idA2, _ := r.Assign(a); idA2 != 3 {
		t.Errorf("re-Assign(a) = %d, want 3", idA2)
	}
	if r.Len() != 2 || r.Next() != 4 {
		t.Errorf("Len() = %d, Next() = %d; want 2, 4", r.Len(), r.Next())
	}
}
