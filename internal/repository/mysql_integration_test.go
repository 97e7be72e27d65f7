//go:build integration

package repository_test

import (
    "context"
    "os"
    "sync"
    "testing"
    "time"

    "github.com/google/uuid"
    "github.com/jmoiron/sqlx"
    "github.com/stretchr/testify/require"
    "golang.org/x/crypto/bcrypt"

    "github.com/iliyamo/mano-pro/internal/database"
    "github.com/iliyamo/mano-pro/internal/lifecycle"
    "github.com/iliyamo/mano-pro/internal/model"
    "github.com/iliyamo/mano-pro/internal/queue"
    "github.com/iliyamo/mano-pro/internal/repository"
    "github.com/iliyamo/mano-pro/internal/service"
    "github.com/iliyamo/mano-pro/internal/utils"
)

// Run with a disposable database:
//
//	MANO_TEST_MYSQL_DSN='root:pass@tcp(127.0.0.1:3306)/mano_test?parseTime=true&loc=UTC&clientFoundRows=true' \
//	    go test -tags integration ./internal/repository/
func openMySQL(t *testing.T) *repository.DB {
    t.Helper()
    dsn := os.Getenv("MANO_TEST_MYSQL_DSN")
    if dsn == "" {
        t.Skip("MANO_TEST_MYSQL_DSN not set")
    }
    x, err := sqlx.Connect("mysql", dsn)
    require.NoError(t, err)
    t.Cleanup(func() { _ = x.Close() })
    require.NoError(t, database.Migrate(x.DB))
    for _, table := range []string{
        "notifications", "invoices", "payments", "chat_messages", "project_timeline_entries",
        "projects", "proposals", "emergencies", "refresh_tokens", "users",
    } {
        _, err := x.Exec("DELETE FROM " + table)
        require.NoError(t, err, table)
    }
    return repository.NewDB(x)
}

func mysqlStore(db *repository.DB) service.Store {
    return service.Store{
        Tx:            db,
        Users:         repository.NewUserRepo(db),
        Tokens:        repository.NewTokenRepo(db),
        Emergencies:   repository.NewEmergencyRepo(db),
        Proposals:     repository.NewProposalRepo(db),
        Projects:      repository.NewProjectRepo(db),
        Timeline:      repository.NewTimelineRepo(db),
        Chat:          repository.NewChatRepo(db),
        Payments:      repository.NewPaymentRepo(db),
        Invoices:      repository.NewInvoiceRepo(db),
        Notifications: repository.NewNotificationRepo(db),
    }
}

type discard struct{}

func (discard) Publish(context.Context, queue.Event) error { return nil }

func register(t *testing.T, svc *service.Services, email string, role model.Role) service.Actor {
    t.Helper()
    u, err := svc.Accounts.Register(context.Background(), service.RegisterInput{
        Email: email, Password: "s3cret-pass", FirstName: "Camille", LastName: "Martin", Role: role,
        Trades: []string{"Plomberie"}, Arrondissements: []int{4},
    })
    require.NoError(t, err)
    return service.Actor{ID: u.ID, Role: u.Role}
}

func TestMySQLListOpenFilters(t *testing.T) {
    st := mysqlStore(openMySQL(t))
    svc := service.New(st, discard{}, service.WithBcryptCost(bcrypt.MinCost))
    ctx := context.Background()
    owner := register(t, svc, "gest@example.com", model.RoleGestionnaire)

    for _, in := range []service.EmergencyInput{
        {Title: "Fuite cuisine", Arrondissement: 4, Trade: "Plomberie", UrgencyLevel: model.UrgencyHigh},
        {Title: "Porte bloquée", Arrondissement: 11, Trade: "Serrurerie", UrgencyLevel: model.UrgencyMedium},
        {Title: "Fuite salle de bain", Arrondissement: 20, Trade: "Plomberie", UrgencyLevel: model.UrgencyLow},
    } {
        in.Description, in.Address, in.MaxBudget = "Détails", "1 rue X", 10000
        _, err := svc.Emergencies.Create(ctx, owner, in)
        require.NoError(t, err)
    }

    got, err := st.Emergencies.ListOpen(ctx, model.EmergencyFilter{Trades: []string{"Plomberie"}, Arrondissements: []int{4, 20}})
    require.NoError(t, err)
    require.Len(t, got, 2)

    got, err = st.Emergencies.ListOpen(ctx, model.EmergencyFilter{Search: "FUITE", Urgency: model.UrgencyLow})
    require.NoError(t, err)
    require.Len(t, got, 1)
    require.Equal(t, "Fuite salle de bain", got[0].Title)
}

func TestMySQLRevokeByHashOnce(t *testing.T) {
    st := mysqlStore(openMySQL(t))
    svc := service.New(st, discard{}, service.WithBcryptCost(bcrypt.MinCost))
    ctx := context.Background()
    a := register(t, svc, "art@example.com", model.RoleArtisan)

    hash := utils.HashRefreshRaw(uuid.NewString())
    require.NoError(t, st.Tokens.StoreRefresh(ctx, a.ID, hash, time.Now().Add(time.Hour)))
    require.NoError(t, st.Tokens.RevokeByHash(ctx, hash))
    require.ErrorIs(t, st.Tokens.RevokeByHash(ctx, hash), repository.ErrNotFound)
}

func TestMySQLConcurrentAcceptLocksEmergency(t *testing.T) {
    st := mysqlStore(openMySQL(t))
    svc := service.New(st, discard{}, service.WithBcryptCost(bcrypt.MinCost))
    ctx := context.Background()
    owner := register(t, svc, "gest@example.com", model.RoleGestionnaire)
    e, err := svc.Emergencies.Create(ctx, owner, service.EmergencyInput{
        Title: "Fuite", Description: "Eau", Address: "1 rue X", Arrondissement: 4,
        Trade: "Plomberie", MaxBudget: 50000, UrgencyLevel: model.UrgencyHigh,
    })
    require.NoError(t, err)

    var ids []string
    for _, email := range []string{"aa1@example.com", "aa2@example.com", "aa3@example.com"} {
        a := register(t, svc, email, model.RoleArtisan)
        p, err := svc.Proposals.Submit(ctx, a, e.ID, service.ProposalInput{Price: 1000, Description: "x", EstimatedDuration: "1h"})
        require.NoError(t, err)
        ids = append(ids, p.ID)
    }

    var wg sync.WaitGroup
    errs := make([]error, len(ids))
    for i, id := range ids {
        wg.Add(1)
        go func(i int, id string) {
            defer wg.Done()
            _, errs[i] = svc.Proposals.Accept(ctx, owner, id)
        }(i, id)
    }
    wg.Wait()

    won := 0
    for _, err := range errs {
        if err == nil {
            won++
            continue
        }
        require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
    }
    require.Equal(t, 1, won)

    projects, err := svc.Projects.List(ctx, owner)
    require.NoError(t, err)
    require.Len(t, projects, 1)
    again, err := svc.Proposals.Accept(ctx, owner, projects[0].ProposalID)
    require.NoError(t, err)
    require.Equal(t, projects[0].ID, again.ID)
}
