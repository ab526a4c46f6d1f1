package db

import (
	"database/sql"
	"io"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	log "github.com/schollz/logger"
	"github.com/schollz/sqlite3dump"
)

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	title TEXT NOT NULL PRIMARY KEY,
	text TEXT NOT NULL,
	html TEXT NOT NULL,
	history TEXT NOT NULL,
	created TIMESTAMP NOT NULL,
	modified TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS uploads (
	name TEXT NOT NULL PRIMARY KEY,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	sha1 TEXT NOT NULL,
	description TEXT NOT NULL,
	data BLOB NOT NULL,
	created TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS categorylinks (
	page TEXT NOT NULL,
	category TEXT NOT NULL,
	sortkey TEXT NOT NULL,
	PRIMARY KEY (page, category)
);
CREATE TABLE IF NOT EXISTS pagelinks (
	page TEXT NOT NULL,
	target TEXT NOT NULL,
	PRIMARY KEY (page, target)
);
CREATE TABLE IF NOT EXISTS externallinks (
	page TEXT NOT NULL,
	url TEXT NOT NULL,
	PRIMARY KEY (page, url)
);
CREATE TABLE IF NOT EXISTS imagelinks (
	page TEXT NOT NULL,
	file TEXT NOT NULL,
	PRIMARY KEY (page, file)
);
CREATE INDEX IF NOT EXISTS pagelinks_target ON pagelinks(target);
CREATE INDEX IF NOT EXISTS categorylinks_category ON categorylinks(category);
CREATE INDEX IF NOT EXISTS imagelinks_file ON imagelinks(file);
`

// Open opens (creating if needed) the database at name.
func Open(name string) (*Store, error) {
	db, err := sql.Open("sqlite3", name)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create tables")
	}
	log.Debugf("opened %s", name)
	return &Store{Name: name, DB: db}, nil
}

func (s *Store) Close() error {
	s.Lock()
	defer s.Unlock()
	return s.DB.Close()
}

// Dump writes the whole database to w as SQL statements.
func (s *Store) Dump(w io.Writer) error {
	s.RLock()
	defer s.RUnlock()
	return errors.Wrap(sqlite3dump.Dump(s.Name, w), "dump")
}
