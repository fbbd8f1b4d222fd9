package pager

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/store/memory"
	apperrors "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/errors"
)

func TestWindow(t *testing.T) {
	tests := []struct {
		page, size                   int
		wantPage, wantSize, wantSkip int
	}{
		{1, 50, 1, 50, 0},
		{0, 0, 1, 50, 0},
		{-3, 10, 1, 10, 0},
		{3, 20, 3, 20, 40},
		{2, 500, 2, 100, 100},
		{1, -5, 1, 1, 0},
		{math.MaxInt / 50, 100, 21474837, 100, 2147483600},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page=%d,size=%d", tt.page, tt.size), func(t *testing.T) {
			page, size, offset := Window(tt.page, tt.size, 0, 0)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantSize, size)
			assert.Equal(t, tt.wantSkip, offset)
		})
	}
}

func seed(n int) *memory.Store {
	rows := make([]contracts.Contract, n)
	for i := range rows {
		rows[i] = contracts.Contract{
			ContractCode: fmt.Sprintf("C%03d", i),
			Amount:       decimal.NewNullDecimal(decimal.NewFromInt(int64(i))),
		}
	}
	return memory.New(rows...)
}

func TestPageHasMore(t *testing.T) {
	pg := New(seed(120), 50, 100, nil)
	ctx := context.Background()

	p2, err := pg.Page(ctx, query.True(), contracts.SortNone, 2, 50)
	require.NoError(t, err)
	assert.Len(t, p2.Rows, 50)
	assert.True(t, p2.HasMore)
	assert.Equal(t, "C050", p2.Rows[0].ContractCode)

	p3, err := pg.Page(ctx, query.True(), contracts.SortNone, 3, 50)
	require.NoError(t, err)
	assert.Len(t, p3.Rows, 20)
	assert.False(t, p3.HasMore)

	p9, err := pg.Page(ctx, query.True(), contracts.SortNone, 9, 50)
	require.NoError(t, err)
	assert.NotNil(t, p9.Rows)
	assert.Empty(t, p9.Rows)
	assert.False(t, p9.HasMore)
}

func TestPageFarPastTheEnd(t *testing.T) {
	pg := New(seed(10), 50, 100, nil)
	for _, page := range []int{math.MaxInt / 50, math.MaxInt} {
		res, err := pg.Page(context.Background(), query.True(), contracts.SortAmountDesc, page, 100)
		require.NoError(t, err)
		assert.Empty(t, res.Rows)
		assert.False(t, res.HasMore)
		assert.Equal(t, MaxOffset/100+1, res.Page)
	}
}

func TestPageExactBoundary(t *testing.T) {
	pg := New(seed(100), 50, 100, nil)
	p2, err := pg.Page(context.Background(), query.True(), contracts.SortNone, 2, 50)
	require.NoError(t, err)
	assert.Len(t, p2.Rows, 50)
	assert.False(t, p2.HasMore)
}

func TestPageSortAmountDescNullsLast(t *testing.T) {
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	src := memory.New(
		contracts.Contract{ContractCode: "none"},
		contracts.Contract{ContractCode: "small", Amount: decimal.NewNullDecimal(decimal.NewFromInt(1)), StartDate: &day},
		contracts.Contract{ContractCode: "big", AmountText: "$2,500.00"},
	)
	pg := New(src, 50, 100, nil)

	res, err := pg.Page(context.Background(), query.True(), contracts.SortAmountDesc, 1, 10)
	require.NoError(t, err)
	codes := []string{res.Rows[0].ContractCode, res.Rows[1].ContractCode, res.Rows[2].ContractCode}
	assert.Equal(t, []string{"big", "small", "none"}, codes)

	res, err = pg.Page(context.Background(), query.True(), contracts.SortAmountAsc, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "none", res.Rows[0].ContractCode)
}

type brokenSource struct{ err error }

func (b brokenSource) Rows(context.Context, query.Predicate, contracts.SortKey, int, int) ([]contracts.Contract, error) {
	return nil, b.err
}

func TestPageFailureIsFatal(t *testing.T) {
	pg := New(brokenSource{errors.New("relation does not exist")}, 50, 100, nil)
	_, err := pg.Page(context.Background(), query.True(), contracts.SortNone, 1, 50)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrQueryExecution)
	assert.Equal(t, http.StatusInternalServerError, apperrors.HTTPStatusCode(err))

	pg = New(brokenSource{context.DeadlineExceeded}, 50, 100, nil)
	_, err = pg.Page(context.Background(), query.True(), contracts.SortNone, 1, 50)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatusCode(err))
}
