package crawl

import "testing"

func TestFrontier_OrdersByDepthThenInsertion(t *testing.T) {
	f := NewFrontier()
	f.Push("https://example.com/a/b", 2, 1)
	f.Push("https://example.com/", 0, 0)
	f.Push("https://example.com/x", 1, 1)
	f.Push("https://example.com/y", 1, 1)

	want := []string{
		"https://example.com/",
		"https://example.com/x",
		"https://example.com/y",
		"https://example.com/a/b",
	}
	for i, w := range want {
		item, ok := f.Pop()
		if !ok {
			t.Fatalf("pop %d: frontier empty", i)
		}
		if item.URL != w {
			t.Fatalf("pop %d = %q, want %q", i, item.URL, w)
		}
	}
	if _, ok := f.Pop(); ok {
		t.Fatal("frontier should be drained")
	}
}

func TestFrontier_InsertionOrderBreaksTies(t *testing.T) {
	f := NewFrontier()
	for _, u := range []string{"first", "second", "third"} {
		f.Push(u, 1, 1)
	}
	for _, want := range []string{"first", "second", "third"} {
		item, _ := f.Pop()
		if item.URL != want {
			t.Fatalf("tie-break order wrong: got %q, want %q", item.URL, want)
		}
	}
}
