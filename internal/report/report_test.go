package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"nutrition-bot/internal/nutrition"
)

// MockStore is a canned-response Store.
type MockStore struct {
	Stored    []nutrition.Classification
	Err       error
	LastUser  string
	LastSince *time.Time
}

func (m *MockStore) Classifications(ctx context.Context, userID string, since *time.Time) ([]nutrition.Classification, error) {
	m.LastUser = userID
	m.LastSince = since
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Stored, nil
}

// MockSuggester is a canned-response SuggestionSource.
type MockSuggester struct {
	Reply       string
	Err         error
	Calls       int
	LastPayload any
}

func (m *MockSuggester) Freeform(ctx context.Context, operation string, payload any) (string, error) {
	m.Calls++
	m.LastPayload = payload
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartOfWeek(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "midweek",
			now:  time.Date(2025, 3, 5, 15, 30, 12, 0, time.UTC), // Wednesday
			want: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "monday stays on monday",
			now:  time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC),
			want: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday reaches back six days",
			now:  time.Date(2025, 3, 9, 23, 59, 59, 0, time.UTC),
			want: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := StartOfWeek(tc.now)
			if !got.Equal(tc.want) {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestPercentOf(t *testing.T) {
	t.Run("known values", func(t *testing.T) {
		cases := []struct {
			cumulative float64
			want       int
		}{
			{0, 0},
			{0.8, 11},
			{3.5, 50},
			{7.0, 100},
			{12.0, 100}, // clamped
		}
		for _, tc := range cases {
			if got := percentOf(tc.cumulative); got != tc.want {
				t.Errorf("percentOf(%v): expected %d, got %d", tc.cumulative, tc.want, got)
			}
		}
	})

	t.Run("monotonic and bounded", func(t *testing.T) {
		prev := -1
		for cumulative := 0.0; cumulative <= 15.0; cumulative += 0.05 {
			got := percentOf(cumulative)
			if got < 0 || got > 100 {
				t.Fatalf("percentOf(%v) = %d out of range", cumulative, got)
			}
			if got < prev {
				t.Fatalf("percentOf(%v) = %d decreased from %d", cumulative, got, prev)
			}
			prev = got
		}
	})
}

func TestAggregate(t *testing.T) {
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

	t.Run("sums the week per group", func(t *testing.T) {
		store := &MockStore{Stored: []nutrition.Classification{
			{Fruits: 0.5},
			{Fruits: 0.3},
		}}
		svc := NewService(store, &MockSuggester{}, testLogger())

		rep, err := svc.Aggregate(context.Background(), "42", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.LastUser != "42" {
			t.Errorf("expected query for user 42, got %q", store.LastUser)
		}
		if store.LastSince == nil || !store.LastSince.Equal(StartOfWeek(now)) {
			t.Errorf("expected window start %v, got %v", StartOfWeek(now), store.LastSince)
		}
		if len(rep.Progress) != 6 {
			t.Fatalf("expected 6 groups, got %d", len(rep.Progress))
		}
		if rep.Progress[0].Group != nutrition.Fruits || rep.Progress[0].Percent != 11 {
			t.Errorf("expected fruits at 11%%, got %+v", rep.Progress[0])
		}
		for _, gp := range rep.Progress[1:] {
			if gp.Percent != 0 {
				t.Errorf("expected %s at 0%%, got %d", gp.Group, gp.Percent)
			}
		}
	})

	t.Run("order independent", func(t *testing.T) {
		meals := []nutrition.Classification{
			{Fruits: 0.5, Dairy: 0.2},
			{Fruits: 0.3},
			{Vegetables: 0.7, Dairy: 0.1},
		}
		reversed := []nutrition.Classification{meals[2], meals[1], meals[0]}

		forward := &MockStore{Stored: meals}
		backward := &MockStore{Stored: reversed}

		repA, err := NewService(forward, &MockSuggester{}, testLogger()).Aggregate(context.Background(), "u", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		repB, err := NewService(backward, &MockSuggester{}, testLogger()).Aggregate(context.Background(), "u", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i := range repA.Progress {
			if repA.Progress[i] != repB.Progress[i] {
				t.Errorf("aggregation depends on order: %+v vs %+v", repA.Progress[i], repB.Progress[i])
			}
		}
	})

	t.Run("store failure propagates", func(t *testing.T) {
		store := &MockStore{Err: errors.New("disk gone")}
		svc := NewService(store, &MockSuggester{}, testLogger())

		_, err := svc.Aggregate(context.Background(), "u", now)
		if err == nil {
			t.Fatal("expected an error, got nil")
		}
	})
}

func TestWeeklySuggestions(t *testing.T) {
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

	t.Run("uses model suggestions when parseable", func(t *testing.T) {
		store := &MockStore{Stored: []nutrition.Classification{{Fruits: 0.8}}}
		suggester := &MockSuggester{Reply: `Here you go: {"fruits": "Add a banana at breakfast.", "dairy": "A glass of milk."}`}
		svc := NewService(store, suggester, testLogger())

		text, err := svc.Weekly(context.Background(), "42", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(text, "- **Fruits**: Add a banana at breakfast.") {
			t.Errorf("expected model suggestion line, got:\n%s", text)
		}
		if suggester.Calls != 1 {
			t.Errorf("expected one batched suggestion call, got %d", suggester.Calls)
		}
	})

	t.Run("falls back to canned suggestions on call failure", func(t *testing.T) {
		store := &MockStore{Stored: nil}
		suggester := &MockSuggester{Err: errors.New("model down")}
		svc := NewService(store, suggester, testLogger())

		text, err := svc.Weekly(context.Background(), "42", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(text, "🍓 Try adding a serving of berries or an apple.") {
			t.Errorf("expected canned fruits suggestion, got:\n%s", text)
		}
		if !strings.Contains(text, "🥜 Cook with olive oil or snack on a handful of nuts.") {
			t.Errorf("expected canned oils suggestion, got:\n%s", text)
		}
	})

	t.Run("falls back when reply has no JSON", func(t *testing.T) {
		store := &MockStore{Stored: nil}
		suggester := &MockSuggester{Reply: "eat more vegetables"}
		svc := NewService(store, suggester, testLogger())

		text, err := svc.Weekly(context.Background(), "42", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(text, "🥗 Consider a side salad with mixed greens.") {
			t.Errorf("expected canned vegetables suggestion, got:\n%s", text)
		}
	})

	t.Run("reply naming no flagged group yields no suggestion lines", func(t *testing.T) {
		store := &MockStore{Stored: nil}
		suggester := &MockSuggester{Reply: `{"hydration": "Drink more water."}`}
		svc := NewService(store, suggester, testLogger())

		text, err := svc.Weekly(context.Background(), "42", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(text, "**💡 Suggestions to Complete Weekly Targets:**") {
			t.Error("expected the suggestions header")
		}
		if strings.Contains(text, "🍓") {
			t.Errorf("expected no canned suggestions for a non-empty reply, got:\n%s", text)
		}
		if got := strings.Count(text, "- **"); got != 6 {
			t.Errorf("expected only the 6 breakdown lines, got %d bulleted lines:\n%s", got, text)
		}
	})

	t.Run("empty JSON object falls back to canned suggestions", func(t *testing.T) {
		store := &MockStore{Stored: nil}
		suggester := &MockSuggester{Reply: `{}`}
		svc := NewService(store, suggester, testLogger())

		text, err := svc.Weekly(context.Background(), "42", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(text, "🍓 Try adding a serving of berries or an apple.") {
			t.Errorf("expected canned fruits suggestion, got:\n%s", text)
		}
	})

	t.Run("no suggestion call when every goal is met", func(t *testing.T) {
		full := nutrition.Classification{Fruits: 7, Vegetables: 7, Grains: 7, Protein: 7, Dairy: 7, Oils: 7}
		store := &MockStore{Stored: []nutrition.Classification{full}}
		suggester := &MockSuggester{}
		svc := NewService(store, suggester, testLogger())

		text, err := svc.Weekly(context.Background(), "42", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if suggester.Calls != 0 {
			t.Errorf("expected no suggestion calls, got %d", suggester.Calls)
		}
		if !strings.Contains(text, "**💡 Suggestions to Complete Weekly Targets:**") {
			t.Error("expected the suggestions header even with all goals met")
		}
	})
}
