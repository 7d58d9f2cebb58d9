package sortutil

import (
	"reflect"
	"testing"
)

func TestStablePathSortDoesNotMutate(t *testing.T) {
	in := []string{"b.wxs", "a/z.wxs", "a.wxs"}
	got := StablePathSort(in)
	want := []string{"a.wxs", "a/z.wxs", "b.wxs"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if in[0] != "b.wxs" {
		t.Fatalf("input mutated: %v", in)
	}
}

func TestKeysAndDedup(t *testing.T) {
	if got := Keys(map[string]int{"b": 1, "a": 2}); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("Keys = %v", got)
	}
	if got := Dedup([]string{"b", "", "a", "b"}); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("Dedup = %v", got)
	}
}
