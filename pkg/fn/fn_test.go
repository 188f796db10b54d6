package fn

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

// --- Result ---

func TestOkAndErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok should be ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatal("wrong unwrap")
	}

	e := Err[int](errors.New("fail"))
	if e.IsOk() || !e.IsErr() {
		t.Fatal("Err should be err")
	}
}

func TestErrfWraps(t *testing.T) {
	base := errors.New("feed offline")
	r := Errf[string]("snapshot: %w", base)
	_, err := r.Unwrap()
	if !errors.Is(err, base) {
		t.Fatal("Errf should wrap with %w")
	}
}

func TestFromPair(t *testing.T) {
	if FromPair(strconv.Atoi("42")).Must() != 42 {
		t.Fatal("FromPair ok case failed")
	}
	if FromPair(strconv.Atoi("nope")).IsOk() {
		t.Fatal("FromPair should carry the error")
	}
}

func TestMustPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Must should panic on Err")
		}
	}()
	Err[int](errors.New("boom")).Must()
}

func TestUnwrapOr(t *testing.T) {
	if Ok(1).UnwrapOr(9) != 1 {
		t.Fatal("should return value")
	}
	if Err[int](errors.New("x")).UnwrapOr(9) != 9 {
		t.Fatal("should return fallback")
	}
}

func TestMapAndThen(t *testing.T) {
	r := Ok(2).Map(func(v int) int { return v * 3 }).AndThen(func(v int) Result[int] { return Ok(v + 1) })
	if r.Must() != 7 {
		t.Fatal("chain failed")
	}
	e := Err[int](errors.New("x")).Map(func(v int) int { return v * 3 })
	if e.IsOk() {
		t.Fatal("Map on Err should stay Err")
	}
}

func TestMapResult(t *testing.T) {
	r := MapResult(Ok(5), func(v int) string { return strconv.Itoa(v) })
	if r.Must() != "5" {
		t.Fatal("MapResult failed")
	}
	if MapResult(Err[int](errors.New("boom")), strconv.Itoa).IsOk() {
		t.Fatal("MapResult on Err should stay Err")
	}
}

func TestCollect(t *testing.T) {
	all := Collect([]Result[int]{Ok(1), Ok(2), Ok(3)})
	v := all.Must()
	if len(v) != 3 || v[0] != 1 {
		t.Fatal("Collect failed")
	}

	bad := Collect([]Result[int]{Ok(1), Err[int](errors.New("e1")), Err[int](errors.New("e2"))})
	_, err := bad.Unwrap()
	if err == nil || err.Error() != "e1" {
		t.Fatal("Collect should return first error")
	}

	empty := Collect([]Result[int]{})
	if !empty.IsOk() || len(empty.Must()) != 0 {
		t.Fatal("Collect empty should be ok")
	}
}

// --- Slice ---

func TestMap(t *testing.T) {
	out := Map([]int{1, 2, 3}, func(v int) int { return v * 2 })
	if len(out) != 3 || out[2] != 6 {
		t.Fatal("Map failed")
	}
	if len(Map([]int{}, func(v int) int { return v })) != 0 {
		t.Fatal("Map empty failed")
	}
}

func TestFilter(t *testing.T) {
	out := Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })
	if len(out) != 2 || out[0] != 2 {
		t.Fatal("Filter failed")
	}
}

func TestFilterMap(t *testing.T) {
	out := FilterMap([]string{"1", "x", "3"}, func(s string) (int, bool) {
		v, err := strconv.Atoi(s)
		return v, err == nil
	})
	if len(out) != 2 || out[1] != 3 {
		t.Fatal("FilterMap failed")
	}
}

func TestUnique(t *testing.T) {
	out := Unique([]string{"suv", "truck", "suv", "sedan", "truck"})
	if len(out) != 3 || out[0] != "suv" || out[1] != "truck" || out[2] != "sedan" {
		t.Fatal("Unique should keep first-occurrence order")
	}
}

func TestParMap(t *testing.T) {
	out := ParMap([]int{1, 2, 3, 4}, 2, func(v int) int { return v * 2 })
	for i, v := range out {
		if v != (i+1)*2 {
			t.Fatalf("ParMap order broken at %d", i)
		}
	}
	if len(ParMap([]int{}, 2, func(v int) int { return v })) != 0 {
		t.Fatal("ParMap empty should return empty")
	}
	unbounded := ParMap([]int{1, 2, 3}, 0, func(v int) int { return v + 1 })
	if unbounded[0] != 2 || unbounded[2] != 4 {
		t.Fatal("ParMap unbounded failed")
	}
}

// --- Stages ---

func TestThen(t *testing.T) {
	double := Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v * 2) })
	addOne := Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v + 1) })

	if Then(double, addOne)(context.Background(), 5).Must() != 11 {
		t.Fatal("Then failed")
	}
}

func TestThenShortCircuits(t *testing.T) {
	fail := Stage[int, int](func(_ context.Context, _ int) Result[int] { return Err[int](errors.New("fail")) })
	called := false
	second := Stage[int, int](func(_ context.Context, v int) Result[int] {
		called = true
		return Ok(v)
	})

	r := Then(fail, second)(context.Background(), 1)
	if r.IsOk() || called {
		t.Fatal("Then should short-circuit")
	}
}

func TestMapStage(t *testing.T) {
	s := MapStage(strconv.Itoa)
	if s(context.Background(), 42).Must() != "42" {
		t.Fatal("MapStage failed")
	}
}

func TestTapStage(t *testing.T) {
	var captured int
	s := TapStage(func(_ context.Context, v int) { captured = v })
	if s(context.Background(), 7).Must() != 7 || captured != 7 {
		t.Fatal("TapStage failed")
	}
}

func TestTracedStage(t *testing.T) {
	s := TracedStage("add", Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v + 1) }))
	if s(context.Background(), 1).Must() != 2 {
		t.Fatal("TracedStage failed")
	}

	e := TracedStage("boom", Stage[int, int](func(_ context.Context, _ int) Result[int] { return Err[int](errors.New("x")) }))
	if e(context.Background(), 1).IsOk() {
		t.Fatal("TracedStage error should propagate")
	}
}

// --- Retry ---

func TestRetrySucceedsEventually(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond}, func(_ context.Context) Result[int] {
		attempts++
		if attempts < 3 {
			return Err[int](errors.New("not yet"))
		}
		return Ok(42)
	})
	if r.Must() != 42 || attempts != 3 {
		t.Fatal("Retry should succeed on 3rd attempt")
	}
}

func TestRetryExhausted(t *testing.T) {
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond}, func(_ context.Context) Result[int] {
		return Err[int](errors.New("fail"))
	})
	if r.IsOk() {
		t.Fatal("Retry should fail after exhausting attempts")
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	r := Retry(ctx, RetryOpts{MaxAttempts: 100, InitialWait: 10 * time.Millisecond}, func(context.Context) Result[int] {
		return Err[int](errors.New("fail"))
	})
	_, err := r.Unwrap()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRetryStage(t *testing.T) {
	attempts := 0
	s := RetryStage(RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond},
		Stage[int, int](func(_ context.Context, v int) Result[int] {
			attempts++
			if attempts < 2 {
				return Err[int](errors.New("fail"))
			}
			return Ok(v * 2)
		}))
	if s(context.Background(), 5).Must() != 10 {
		t.Fatal("RetryStage failed")
	}
}
