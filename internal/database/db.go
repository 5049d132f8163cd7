package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Settings selects the driver and its connection parameters.  Path is only
// used by sqlite; the network fields are ignored there.
type Settings struct {
	Driver string
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
	Path   string
	// MultiStatements allows several statements per Exec on MySQL; only the
	// migration handle sets it.
	MultiStatements bool
}

// Open connects to the configured database and verifies the connection.
func Open(s Settings) (*sql.DB, Dialect, error) {
	dialect, err := ParseDialect(s.Driver)
	if err != nil {
		return nil, "", err
	}

	var db *sql.DB
	switch dialect {
	case MySQL:
		db, err = sql.Open("mysql", mysqlDSN(s))
	case Postgres:
		db, err = sql.Open("postgres", postgresDSN(s))
	case SQLite:
		db, err = OpenSQLite(s.Path)
	}
	if err != nil {
		return nil, "", err
	}

	if dialect != SQLite {
		// Pool settings
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	return db, dialect, nil
}

// OpenSQLite opens a sqlite database with foreign keys enforced.  The pool
// is capped to a single connection so write transactions run one at a
// time, which is how sqlite serializes writers anyway.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func mysqlDSN(s Settings) string {
	auth := s.User
	if s.Pass != "" {
		auth = fmt.Sprintf("%s:%s", s.User, s.Pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	// clientFoundRows=true -> RowsAffected counts matched rows, not changed ones
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		auth, s.Host, s.Port, s.Name)
	if s.MultiStatements {
		dsn += "&multiStatements=true"
	}
	return dsn
}

func postgresDSN(s Settings) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.User, s.Pass),
		Host:     s.Host + ":" + s.Port,
		Path:     "/" + s.Name,
		RawQuery: "sslmode=disable&timezone=UTC",
	}
	return u.String()
}
