package memory

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "github.com/iliyamo/mano-pro/internal/model"
    "github.com/iliyamo/mano-pro/internal/repository"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
    s := New()
    st := s.Bundle()
    ctx := context.Background()
    boom := errors.New("boom")

    err := s.WithinTx(ctx, func(ctx context.Context) error {
        require.NoError(t, st.Emergencies.Create(ctx, &model.Emergency{ID: "e1", Status: model.EmergencyOpen}))
        return s.WithinTx(ctx, func(ctx context.Context) error {
            require.NoError(t, st.Emergencies.Create(ctx, &model.Emergency{ID: "e2", Status: model.EmergencyOpen}))
            return boom
        })
    })
    require.ErrorIs(t, err, boom)

    _, err = st.Emergencies.GetByID(ctx, "e1")
    require.ErrorIs(t, err, repository.ErrNotFound)
    _, err = st.Emergencies.GetByID(ctx, "e2")
    require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUniqueKeys(t *testing.T) {
    st := New().Bundle()
    ctx := context.Background()

    require.NoError(t, st.Users.Create(ctx, &model.User{ID: "u1", Email: "a@b.fr"}))
    require.ErrorIs(t, st.Users.Create(ctx, &model.User{ID: "u2", Email: "a@b.fr"}), repository.ErrEmailExists)

    require.NoError(t, st.Proposals.Create(ctx, &model.Proposal{ID: "p1", EmergencyID: "e1", ArtisanID: "u1"}))
    require.ErrorIs(t, st.Proposals.Create(ctx, &model.Proposal{ID: "p2", EmergencyID: "e1", ArtisanID: "u1"}), repository.ErrConflict)

    require.NoError(t, st.Projects.Create(ctx, &model.Project{ID: "j1", EmergencyID: "e1", ProposalID: "p1"}))
    require.ErrorIs(t, st.Projects.Create(ctx, &model.Project{ID: "j2", EmergencyID: "e1", ProposalID: "p3"}), repository.ErrConflict)

    require.NoError(t, st.Invoices.Create(ctx, &model.Invoice{ID: "i1", PaymentID: "pay1", InvoiceNumber: "INV-1"}))
    require.ErrorIs(t, st.Invoices.Create(ctx, &model.Invoice{ID: "i2", PaymentID: "pay1", InvoiceNumber: "INV-2"}), repository.ErrConflict)
}

func TestListsAreOrdered(t *testing.T) {
    st := New().Bundle()
    ctx := context.Background()
    t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

    for i, id := range []string{"old", "mid", "new"} {
        e := model.Emergency{ID: id, CreatedBy: "g", Status: model.EmergencyOpen, CreatedAt: t0.Add(time.Duration(i) * time.Hour)}
        require.NoError(t, st.Emergencies.Create(ctx, &e))
        require.NoError(t, st.Timeline.Append(ctx, &model.TimelineEntry{ID: id, ProjectID: "j", Timestamp: e.CreatedAt}))
    }

    es, err := st.Emergencies.ListByCreator(ctx, "g")
    require.NoError(t, err)
    require.Equal(t, []string{"new", "mid", "old"}, []string{es[0].ID, es[1].ID, es[2].ID})

    tl, err := st.Timeline.ListByProject(ctx, "j")
    require.NoError(t, err)
    require.Equal(t, []string{"old", "mid", "new"}, []string{tl[0].ID, tl[1].ID, tl[2].ID})
}

func TestRefreshTokens(t *testing.T) {
    st := New().Bundle()
    ctx := context.Background()

    require.NoError(t, st.Tokens.StoreRefresh(ctx, "u1", "h1", time.Now().Add(time.Hour)))
    require.NoError(t, st.Tokens.StoreRefresh(ctx, "u1", "h2", time.Now().Add(-time.Hour)))

    uid, err := st.Tokens.ValidateRefresh(ctx, "h1")
    require.NoError(t, err)
    require.Equal(t, "u1", uid)

    _, err = st.Tokens.ValidateRefresh(ctx, "h2")
    require.ErrorIs(t, err, repository.ErrNotFound)

    require.NoError(t, st.Tokens.RevokeAllForUser(ctx, "u1"))
    _, err = st.Tokens.ValidateRefresh(ctx, "h1")
    require.ErrorIs(t, err, repository.ErrNotFound)
    require.NoError(t, st.Tokens.RevokeAllForUser(ctx, "u1"))
}

func TestRevokeByHashOnlyOnce(t *testing.T) {
    st := New().Bundle()
    ctx := context.Background()
    require.NoError(t, st.Tokens.StoreRefresh(ctx, "u1", "h1", time.Now().Add(time.Hour)))

    require.NoError(t, st.Tokens.RevokeByHash(ctx, "h1"))
    require.ErrorIs(t, st.Tokens.RevokeByHash(ctx, "h1"), repository.ErrNotFound)
    require.ErrorIs(t, st.Tokens.RevokeByHash(ctx, "unknown"), repository.ErrNotFound)
}
