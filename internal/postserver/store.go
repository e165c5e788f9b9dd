// Package postserver is a local stand-in for the post creator endpoint. It
// serves random posts from a SQLite table.
package postserver

import (
	"context"
	"database/sql"

	"github.com/go-via/testbench/internal/posts"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// ErrNoPosts is returned when the table is empty.
var ErrNoPosts = errors.New("no posts")

// Store reads posts.
type Store interface {
	RandomPost(ctx context.Context) (posts.Post, error)
	ListRows(ctx context.Context) (*sql.Rows, error)
}

const schema = `create table if not exists posts (
	id integer primary key autoincrement,
	title text not null,
	body text not null,
	author text not null
);`

var seed = []posts.Post{
	{Title: "Testing Go views", Body: "Render, query, then click.", Author: "Ada"},
	{Title: "Timers on a loop", Body: "Decrement lands after 250ms.", Author: "Brian"},
	{Title: "Mock the network", Body: "A fetcher is just an interface.", Author: "Dave"},
}

// SQLStore is a Store over database/sql.
type SQLStore struct {
	db         *sql.DB
	randomStmt *sql.Stmt
}

// NewSQLStore prepares the statements SQLStore needs. The posts table must exist.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	stmt, err := db.Prepare(`select title, body, author from posts order by random() limit 1`)
	if err != nil {
		return nil, errors.Wrap(err, "prepare random post")
	}
	return &SQLStore{db: db, randomStmt: stmt}, nil
}

// OpenSQLite opens the database at path, creates the posts table and seeds
// it when empty. Use ":memory:" for a throwaway store.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	// :memory: databases are per connection
	db.SetMaxOpenConns(1)
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	s, err := NewSQLStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the posts table and seeds it when empty.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "create posts table")
	}
	var n int
	if err := db.QueryRowContext(ctx, `select count(*) from posts`).Scan(&n); err != nil {
		return errors.Wrap(err, "count posts")
	}
	if n > 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin seed")
	}
	for _, p := range seed {
		if _, err := tx.ExecContext(ctx, `insert into posts (title, body, author) values (?, ?, ?)`, p.Title, p.Body, p.Author); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "seed posts")
		}
	}
	return errors.Wrap(tx.Commit(), "commit seed")
}

// RandomPost returns one post picked at random.
func (s *SQLStore) RandomPost(ctx context.Context) (posts.Post, error) {
	var p posts.Post
	err := s.randomStmt.QueryRowContext(ctx).Scan(&p.Title, &p.Body, &p.Author)
	if errors.Is(err, sql.ErrNoRows) {
		return posts.Post{}, ErrNoPosts
	}
	if err != nil {
		return posts.Post{}, errors.Wrap(err, "query random post")
	}
	return p, nil
}

// ListRows returns every post, oldest first. The caller closes the rows.
func (s *SQLStore) ListRows(ctx context.Context) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, `select title, author, body from posts order by id`)
	if err != nil {
		return nil, errors.Wrap(err, "list posts")
	}
	return rows, nil
}

// Close releases the statements and the database.
func (s *SQLStore) Close() error {
	if s.randomStmt != nil {
		s.randomStmt.Close()
	}
	return s.db.Close()
}
