package numerator

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"kassa/internal/core/id"
)

// Mock objects
type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

type mockQuerier struct {
	mu     sync.Mutex
	seqs   map[string]int64
	failed error
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failed != nil {
		return &mockRow{err: m.failed}
	}

	if m.seqs == nil {
		m.seqs = make(map[string]int64)
	}
	key := args[0].(string)
	m.seqs[key]++
	return &mockRow{val: m.seqs[key]}
}

func TestNextSaleNumber_Sequential(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	companyID := id.New()

	before := time.Now().UnixMilli()

	first, err := svc.NextSaleNumber(ctx, companyID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.NextSaleNumber(ctx, companyID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	millis1, seq1 := parseSaleNumber(t, first)
	millis2, seq2 := parseSaleNumber(t, second)

	if millis1 < before {
		t.Errorf("timestamp component %d before test start %d", millis1, before)
	}
	if millis2 < millis1 {
		t.Errorf("timestamps went backwards: %d then %d", millis1, millis2)
	}
	if seq1 != 1 || seq2 != 2 {
		t.Errorf("expected sequence 1 then 2, got %d then %d", seq1, seq2)
	}
}

func TestNextSaleNumber_PerCompanySequences(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()

	companyA := id.New()
	companyB := id.New()

	_, _ = svc.NextSaleNumber(ctx, companyA)
	_, _ = svc.NextSaleNumber(ctx, companyA)

	num, err := svc.NextSaleNumber(ctx, companyB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, seq := parseSaleNumber(t, num); seq != 1 {
		t.Errorf("expected company B to start its own sequence at 1, got %d", seq)
	}
}

func TestNextSaleNumber_DatabaseError(t *testing.T) {
	q := &mockQuerier{failed: errors.New("connection reset")}
	svc := New(q)

	_, err := svc.NextSaleNumber(context.Background(), id.New())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "next sale number") {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func parseSaleNumber(t *testing.T, num string) (int64, int64) {
	t.Helper()

	parts := strings.Split(num, "-")
	if len(parts) != 3 || parts[0] != "SALE" {
		t.Fatalf("malformed sale number %q", num)
	}
	millis, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		t.Fatalf("malformed timestamp in %q: %v", num, err)
	}
	seq, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		t.Fatalf("malformed sequence in %q: %v", num, err)
	}
	return millis, seq
}
