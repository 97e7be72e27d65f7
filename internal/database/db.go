package database

import (
    "context"
    "time"

    "github.com/go-sql-driver/mysql"
    "github.com/jmoiron/sqlx"

    "github.com/iliyamo/mano-pro/internal/config"
)

// Open connects to MySQL and verifies the connection.
func Open(cfg config.Config) (*sqlx.DB, error) {
    dc := mysql.NewConfig()
    dc.User = cfg.DBUser
    dc.Passwd = cfg.DBPass
    dc.Net = "tcp"
    dc.Addr = cfg.DBHost + ":" + cfg.DBPort
    dc.DBName = cfg.DBName
    // parseTime -> DATETIME maps to time.Time, loc UTC keeps times consistent
    dc.ParseTime = true
    dc.Loc = time.UTC
    // RowsAffected counts matched rows so idempotent UPDATEs are not misread as missing rows
    dc.ClientFoundRows = true
    dc.Params = map[string]string{"charset": "utf8mb4"}

    db, err := sqlx.Open("mysql", dc.FormatDSN())
    if err != nil {
        return nil, err
    }

    db.SetMaxOpenConns(25)
    db.SetMaxIdleConns(25)
    db.SetConnMaxLifetime(30 * time.Minute)

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := db.PingContext(ctx); err != nil {
        _ = db.Close()
        return nil, err
    }
    return db, nil
}
