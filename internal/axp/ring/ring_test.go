package ring

import "testing"

func TestPushOverwriteWraps(t *testing.T) {
	r := New[int](4)
	for i := 0; i < 6; i++ {
		r.PushOverwrite(i)
	}
	if r.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", r.Len())
	}
	v, ok := r.Front()
	if !ok || v != 2 {
		t.Fatalf("Front() = (%d, %v), want (2, true)", v, ok)
	}
}

func TestTryPushFailsWhenFull(t *testing.T) {
	r := New[int](2)
	if _, ok := r.TryPush(1); !ok {
		t.Fatal("first push should succeed")
	}
	if _, ok := r.TryPush(2); !ok {
		t.Fatal("second push should succeed")
	}
	if _, ok := r.TryPush(3); ok {
		t.Fatal("third push on full ring-of-2 should fail")
	}
}

func TestPopFrontOrdering(t *testing.T) {
	r := New[string](3)
	r.TryPush("a")
	r.TryPush("b")
	v, _ := r.PopFront()
	if v != "a" {
		t.Fatalf("PopFront() = %q, want %q", v, "a")
	}
	r.TryPush("c")
	r.TryPush("d")
	got := []string{}
	for !r.Empty() {
		v, _ := r.PopFront()
		got = append(got, v)
	}
	want := []string{"b", "c", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("PopFront sequence = %v, want %v", got, want)
		}
	}
}

func TestTruncateTo(t *testing.T) {
	r := New[int](8)
	idxs := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		idx, _ := r.TryPush(i * 10)
		idxs = append(idxs, idx)
	}
	r.TruncateTo(idxs[2])
	if r.Len() != 2 {
		t.Fatalf("Len() after TruncateTo = %d, want 2", r.Len())
	}
	v, _ := r.PopFront()
	if v != 0 {
		t.Fatalf("PopFront() = %d, want 0", v)
	}
}
