package sink

import (
	"context"
	"database/sql"

	"golang.org/x/xerrors"

	"github.com/murakmii/linkget/pkg/linkget"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

const (
	sqlDriverConfKey = "sql.driver"
	sqlDSNConfKey    = "sql.dsn"
)

// 結果をRDB(MySQLまたはSQLite)のテーブルに保存する
// 1回の実行の結果は1トランザクションで保存する
type sqlSink struct {
	db *sql.DB
}

func SQLSinkProvider(_ context.Context, conf *linkget.Configuration) (linkget.Sink, error) {
	driver, err := conf.RequiredOptionAsString(sqlDriverConfKey)
	if err != nil {
		return nil, err
	}

	if driver != "mysql" && driver != "sqlite3" {
		return nil, xerrors.Errorf("unsupported sql driver: '%s'", driver)
	}

	dsn, err := conf.RequiredOptionAsString(sqlDSNConfKey)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, xerrors.Errorf("failed to connect db: %v", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	query := "CREATE TABLE IF NOT EXISTS links(" +
		"run_at VARCHAR(19) NOT NULL, " +
		"position INTEGER NOT NULL, " +
		"url TEXT NOT NULL, " +
		"anchor_text TEXT NOT NULL)"

	if _, err = db.Exec(query); err != nil {
		_ = db.Close()
		return nil, xerrors.Errorf("failed to setup db: %v", err)
	}

	return &sqlSink{db: db}, nil
}

func (s *sqlSink) Render(ctx context.Context, result *linkget.Result) error {
	err := beginTx(s.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare("INSERT INTO links(run_at, position, url, anchor_text) VALUES(?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, link := range result.Links {
			if _, err := stmt.Exec(result.Stamp(), i+1, link.URL, link.Text); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return xerrors.Errorf("failed to save result: %w", err)
	}

	linkget.LoggerFromContext(ctx).Infof("saved %d links to db", len(result.Links))
	return nil
}

func (s *sqlSink) Finish() error {
	return s.db.Close()
}

func beginTx(db *sql.DB, f func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}

	if err := f(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
