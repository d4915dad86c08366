package segment_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/herald/internal/cache"
	"github.com/rafaeljc/herald/internal/fallback"
	"github.com/rafaeljc/herald/internal/ruleengine"
	"github.com/rafaeljc/herald/internal/segment"
	"github.com/rafaeljc/herald/internal/store"
)

var errCustomersDown = errors.New("customers unavailable")

// flakyRepo fails customer reads on demand.
type flakyRepo struct {
	*store.FallbackStore
	failCustomers bool
}

func (r *flakyRepo) ListAllCustomers(ctx context.Context) ([]*store.Customer, error) {
	if r.failCustomers {
		return nil, errCustomersDown
	}
	return r.FallbackStore.ListAllCustomers(ctx)
}

func setup(t *testing.T) (*segment.Materializer, *flakyRepo) {
	t.Helper()
	kv := fallback.NewMemoryKV()
	t.Cleanup(func() { _ = kv.Close() })

	repo := &flakyRepo{FallbackStore: store.NewFallbackStore(kv)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	customers, err := cache.NewCustomerCache(1000, time.Minute)
	require.NoError(t, err)
	t.Cleanup(customers.Close)

	return segment.New(repo, ruleengine.New(logger), customers, logger), repo
}

func spendCustomers(spends ...float64) []*store.Customer {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*store.Customer, 0, len(spends))
	for i, s := range spends {
		out = append(out, &store.Customer{
			ID:        string(rune('a' + i)),
			Name:      "Customer " + string(rune('A'+i)),
			Email:     string(rune('a'+i)) + "@example.com",
			Spend:     s,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	return out
}

func highSpenders() ruleengine.RuleGroup {
	return ruleengine.RuleGroup{
		And: []ruleengine.Rule{{Field: ruleengine.FieldSpend, Op: ">=", Value: 1000.0}},
		Or:  []ruleengine.Rule{},
	}
}

func TestMaterialize(t *testing.T) {
	t.Parallel()
	m, _ := setup(t)
	customers := spendCustomers(500, 1500, 2500)

	t.Run("matches spend >= 1000", func(t *testing.T) {
		res := m.Materialize(highSpenders(), customers)
		assert.Equal(t, []string{"b", "c"}, res.CustomerIDs)
		assert.Equal(t, 2, res.Count)
	})

	t.Run("empty group matches everyone", func(t *testing.T) {
		res := m.Materialize(ruleengine.RuleGroup{}, customers)
		assert.Equal(t, []string{"a", "b", "c"}, res.CustomerIDs)
	})

	t.Run("is idempotent", func(t *testing.T) {
		first := m.Materialize(highSpenders(), customers)
		second := m.Materialize(highSpenders(), customers)
		assert.Equal(t, first, second)
	})

	t.Run("no customers", func(t *testing.T) {
		res := m.Materialize(highSpenders(), nil)
		assert.Empty(t, res.CustomerIDs)
		assert.NotNil(t, res.CustomerIDs)
		assert.Zero(t, res.Count)
	})
}

func TestCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		input   segment.CreateInput
		wantErr bool
	}{
		{
			name:    "missing name",
			input:   segment.CreateInput{Name: "  ", Rules: highSpenders()},
			wantErr: true,
		},
		{
			name: "unknown field",
			input: segment.CreateInput{Name: "x", Rules: ruleengine.RuleGroup{
				And: []ruleengine.Rule{{Field: "age", Op: ">", Value: 3.0}},
			}},
			wantErr: true,
		},
		{
			name: "unknown operator",
			input: segment.CreateInput{Name: "x", Rules: ruleengine.RuleGroup{
				Or: []ruleengine.Rule{{Field: ruleengine.FieldEmail, Op: "~=", Value: "a"}},
			}},
			wantErr: true,
		},
		{
			name:  "valid",
			input: segment.CreateInput{Name: " VIP ", Description: "big spenders", Rules: highSpenders(), CreatedBy: "ops"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, repo := setup(t)
			require.NoError(t, repo.UpsertCustomers(ctx, spendCustomers(500, 1500, 2500)))

			seg, err := m.Create(ctx, tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, segment.ErrInvalidSegment)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, "VIP", seg.Name)
			assert.Equal(t, "ops", seg.CreatedBy)
			assert.True(t, seg.IsMaterialized())
			assert.Equal(t, []string{"b", "c"}, seg.CustomerIDs)

			stored, err := m.Get(ctx, seg.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, stored.CustomerCount)
		})
	}
}

func TestCreate_KeepsSegmentWhenMaterializationFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, repo := setup(t)
	repo.failCustomers = true

	seg, err := m.Create(ctx, segment.CreateInput{Name: "later", Rules: highSpenders()})
	require.NoError(t, err)
	assert.False(t, seg.IsMaterialized())
}

func TestGetCustomers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("materializes on first access", func(t *testing.T) {
		t.Parallel()
		m, repo := setup(t)
		require.NoError(t, repo.UpsertCustomers(ctx, spendCustomers(500, 1500, 2500)))

		seg := &store.Segment{ID: "seg-1", Name: "raw", Rules: highSpenders()}
		require.NoError(t, repo.CreateSegment(ctx, seg))
		require.False(t, seg.IsMaterialized())

		page, err := m.GetCustomers(ctx, "seg-1", 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		require.Len(t, page.Customers, 2)
		assert.Equal(t, "b", page.Customers[0].ID)
		assert.False(t, page.HasMore)

		stored, err := repo.GetSegment(ctx, "seg-1")
		require.NoError(t, err)
		assert.True(t, stored.IsMaterialized())
	})

	t.Run("pages members", func(t *testing.T) {
		t.Parallel()
		m, repo := setup(t)
		require.NoError(t, repo.UpsertCustomers(ctx, spendCustomers(1000, 1001, 1002, 1003, 1004)))
		seg, err := m.Create(ctx, segment.CreateInput{Name: "all", Rules: highSpenders()})
		require.NoError(t, err)

		page, err := m.GetCustomers(ctx, seg.ID, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		require.Len(t, page.Customers, 2)
		assert.Equal(t, "c", page.Customers[0].ID)
		assert.Equal(t, "d", page.Customers[1].ID)
		assert.True(t, page.HasMore)

		page, err = m.GetCustomers(ctx, seg.ID, 2, 10)
		require.NoError(t, err)
		assert.Empty(t, page.Customers)
		assert.False(t, page.HasMore)
	})

	t.Run("reflects new customers on read", func(t *testing.T) {
		t.Parallel()
		m, repo := setup(t)
		require.NoError(t, repo.UpsertCustomers(ctx, spendCustomers(1500)))
		seg, err := m.Create(ctx, segment.CreateInput{Name: "vip", Rules: highSpenders()})
		require.NoError(t, err)
		require.Equal(t, 1, seg.CustomerCount)

		require.NoError(t, repo.UpsertCustomers(ctx, []*store.Customer{{ID: "z", Spend: 9000}}))

		page, err := m.GetCustomers(ctx, seg.ID, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
	})

	t.Run("serves cached members when refresh fails", func(t *testing.T) {
		t.Parallel()
		m, repo := setup(t)
		require.NoError(t, repo.UpsertCustomers(ctx, spendCustomers(1500, 2500)))
		seg, err := m.Create(ctx, segment.CreateInput{Name: "vip", Rules: highSpenders()})
		require.NoError(t, err)

		repo.failCustomers = true
		page, err := m.GetCustomers(ctx, seg.ID, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		assert.Len(t, page.Customers, 2, "members hydrate from the customer cache")
	})

	t.Run("fails when never materialized and refresh fails", func(t *testing.T) {
		t.Parallel()
		m, repo := setup(t)
		require.NoError(t, repo.CreateSegment(ctx, &store.Segment{ID: "seg-x", Name: "x"}))
		repo.failCustomers = true

		_, err := m.GetCustomers(ctx, "seg-x", 10, 0)
		assert.ErrorIs(t, err, errCustomersDown)
	})

	t.Run("unknown segment", func(t *testing.T) {
		t.Parallel()
		m, _ := setup(t)
		_, err := m.GetCustomers(ctx, "missing", 10, 0)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestRefreshAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, repo := setup(t)
	require.NoError(t, repo.UpsertCustomers(ctx, spendCustomers(500, 1500)))

	seg, err := m.Create(ctx, segment.CreateInput{Name: "vip", Rules: highSpenders()})
	require.NoError(t, err)
	firstAt := *seg.MaterializedAt

	require.NoError(t, repo.UpsertCustomers(ctx, []*store.Customer{{ID: "a", Spend: 5000}}))

	refreshed, err := m.Refresh(ctx, seg.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, refreshed.CustomerIDs)
	assert.False(t, refreshed.MaterializedAt.Before(firstAt))

	require.NoError(t, m.Delete(ctx, seg.ID))
	_, err = m.Refresh(ctx, seg.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefreshAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, repo := setup(t)
	require.NoError(t, repo.UpsertCustomers(ctx, spendCustomers(500, 1500)))

	for _, name := range []string{"one", "two", "three"} {
		require.NoError(t, repo.CreateSegment(ctx, &store.Segment{Name: name, Rules: highSpenders()}))
	}

	refreshed, failed, err := m.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, refreshed)
	assert.Zero(t, failed)

	list, _, err := m.List(ctx, 0, 0)
	require.NoError(t, err)
	for _, seg := range list {
		assert.True(t, seg.IsMaterialized(), seg.Name)
		assert.Equal(t, []string{"b"}, seg.CustomerIDs)
	}
}

func TestPreview(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, repo := setup(t)
	require.NoError(t, repo.UpsertCustomers(ctx, spendCustomers(500, 1500, 2500)))

	res, err := m.Preview(ctx, highSpenders())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	list, total, err := m.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total, "preview never persists")
	assert.Empty(t, list)

	_, err = m.Preview(ctx, ruleengine.RuleGroup{And: []ruleengine.Rule{{Field: "nope", Op: "=", Value: "x"}}})
	assert.ErrorIs(t, err, segment.ErrInvalidSegment)
}

func TestImportAndListCustomers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, _ := setup(t)

	require.NoError(t, m.ImportCustomers(ctx, nil), "empty import is a no-op")
	require.NoError(t, m.ImportCustomers(ctx, spendCustomers(1500, 10)))

	seg, err := m.Create(ctx, segment.CreateInput{Name: "vip", Rules: highSpenders()})
	require.NoError(t, err)
	require.Equal(t, 1, seg.CustomerCount)

	renamed := spendCustomers(1500)
	renamed[0].Name = "Renamed"
	require.NoError(t, m.ImportCustomers(ctx, renamed))

	page, err := m.GetCustomers(ctx, seg.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Customers, 1)
	assert.Equal(t, "Renamed", page.Customers[0].Name)

	customers, total, err := m.ListCustomers(ctx, 1, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, customers, 1)
	assert.Equal(t, "b", customers[0].ID)
}
