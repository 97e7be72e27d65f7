package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "testing"

    "github.com/jmoiron/sqlx"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/mano-pro/internal/model"
)

func TestOpenQueryExpandsLists(t *testing.T) {
    query, args, err := openQuery(model.EmergencyFilter{
        Trades:          []string{"Plomberie", "Serrurerie"},
        Arrondissements: []int{4, 11, 20},
        Urgency:         model.UrgencyHigh,
        Search:          "  Fuite ",
    })
    require.NoError(t, err)
    require.Contains(t, query, "trade IN (?, ?)")
    require.Contains(t, query, "arrondissement IN (?, ?, ?)")
    require.True(t, strings.HasSuffix(query, "ORDER BY created_at DESC"))
    require.Equal(t, strings.Count(query, "?"), len(args))
    require.Equal(t, []any{
        model.EmergencyOpen, "Plomberie", "Serrurerie", 4, 11, 20, model.UrgencyHigh, "%fuite%", "%fuite%",
    }, args)
}

func TestOpenQueryWithoutFilters(t *testing.T) {
    query, args, err := openQuery(model.EmergencyFilter{Search: "   "})
    require.NoError(t, err)
    require.NotContains(t, query, " IN ")
    require.NotContains(t, query, "LIKE")
    require.Equal(t, []any{model.EmergencyOpen}, args)
}

type rowsResult struct {
    n   int64
    err error
}

func (r rowsResult) LastInsertId() (int64, error) { return 0, nil }
func (r rowsResult) RowsAffected() (int64, error) { return r.n, r.err }

func TestAffected(t *testing.T) {
    require.NoError(t, affected(rowsResult{n: 1}, nil))
    require.ErrorIs(t, affected(rowsResult{n: 0}, nil), ErrNotFound)
    boom := errors.New("boom")
    require.ErrorIs(t, affected(nil, boom), boom)
    require.ErrorIs(t, affected(rowsResult{err: boom}, nil), boom)
}

func TestNotFoundAndLock(t *testing.T) {
    require.ErrorIs(t, notFound(sql.ErrNoRows), ErrNotFound)
    require.NoError(t, notFound(nil))

    ctx := context.Background()
    require.Empty(t, lock(ctx))
    require.Equal(t, " FOR UPDATE", lock(context.WithValue(ctx, txKey{}, &sqlx.Tx{})))
}
