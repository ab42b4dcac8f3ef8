package stream

import (
	"context"
	"slices"
	"strings"
	"testing"
)

func divideByTwo(n int) int {
	return n / 2
}

func isNonZero(n int) bool {
	return n != 0
}

func TestPipeline(t *testing.T) {
	data := []int{0, 2, 4, 6, 8}
	ctx := context.Background()
	result := Collect(ctx,
		Transform(ctx, divideByTwo,
			Filter(ctx, isNonZero,
				Slice(ctx, data))))

	if !slices.Equal([]int{1, 2, 3, 4}, result) {
		t.Errorf("Expected [1, 2, 3, 4], got %v", result)
	}
}

func TestLines(t *testing.T) {
	in := strings.NewReader("a\nbb\nccc\n")
	ctx := context.Background()
	got := Collect(ctx, Lines(ctx, in))
	if len(got) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(got))
	}
	if string(got[2]) != "ccc" {
		t.Errorf("Expected ccc, got %s", got[2])
	}
}

func TestSink(t *testing.T) {
	ctx := context.Background()
	sum := 0
	n := Sink(ctx, func(v int) { sum += v }, Slice(ctx, []int{1, 2, 3}))
	if n != 3 || sum != 6 {
		t.Errorf("Expected n=3 sum=6, got n=%d sum=%d", n, sum)
	}
}
