package kernel_test

import (
	"testing"
	"time"

	"github.com/meridian-hq/meridian/pkg/kernel"
)

func TestPeriodOf(t *testing.T) {
	p := kernel.PeriodOf(time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC))
	if p != "2026-08" {
		t.Fatalf("expected 2026-08, got %s", p)
	}
}

func TestPeriodOf_NormalizesToUTC(t *testing.T) {
	// 23:30 local on Aug 31 in UTC-5 is already September in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	p := kernel.PeriodOf(time.Date(2026, 8, 31, 23, 30, 0, 0, loc))
	if p != "2026-09" {
		t.Fatalf("expected 2026-09, got %s", p)
	}
}

func TestMonthBounds(t *testing.T) {
	from, to := kernel.MonthBounds(time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC))

	if !from.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from: %v", from)
	}
	if !to.Equal(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected to: %v", to)
	}

	// The last instant of the month is inside the half-open interval.
	last := time.Date(2026, 8, 31, 23, 59, 59, 999999999, time.UTC)
	if last.Before(from) || !last.Before(to) {
		t.Fatal("last instant of the month must fall inside [from, to)")
	}
}

func TestMonthBounds_DecemberRollsOver(t *testing.T) {
	_, to := kernel.MonthBounds(time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC))
	if !to.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected January of next year, got %v", to)
	}
}

func TestPaginationNormalize(t *testing.T) {
	cases := []struct {
		in       kernel.PaginationOptions
		page     int
		pageSize int
	}{
		{kernel.PaginationOptions{}, 1, 25},
		{kernel.PaginationOptions{Page: -3, PageSize: 0}, 1, 25},
		{kernel.PaginationOptions{Page: 2, PageSize: 50}, 2, 50},
		{kernel.PaginationOptions{Page: 1, PageSize: 10000}, 1, 200},
	}
	for _, c := range cases {
		got := c.in.Normalize()
		if got.Page != c.page || got.PageSize != c.pageSize {
			t.Fatalf("Normalize(%+v) = %+v", c.in, got)
		}
	}
}

func TestPaginatedHasNext(t *testing.T) {
	p := kernel.NewPaginated([]int{1, 2, 3}, 1, 3, 7)
	if p.Page.Pages != 3 {
		t.Fatalf("expected 3 pages, got %d", p.Page.Pages)
	}
	if !p.HasNext() {
		t.Fatal("expected more pages after page 1")
	}

	last := kernel.NewPaginated([]int{7}, 3, 3, 7)
	if last.HasNext() {
		t.Fatal("expected no pages after the last one")
	}
}
