package db

import (
	"database/sql"
	"encoding/json"
	"html/template"
	"time"

	"github.com/pkg/errors"
	"github.com/schollz/versionedtext"

	"argc.in/markdownpages/pkg/wiki"
)

// GetPage returns the page stored under title, or nil.
func (s *Store) GetPage(title string) (*Page, error) {
	s.RLock()
	defer s.RUnlock()

	var (
		p       = Page{Title: title}
		html    string
		history string
	)
	err := s.DB.QueryRow(`SELECT text, html, history, created, modified FROM pages WHERE title = ?`, title).
		Scan(&p.Text, &html, &history, &p.Created, &p.Modified)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get page %s", title)
	}
	if err = json.Unmarshal([]byte(history), &p.History); err != nil {
		return nil, errors.Wrapf(err, "history of %s", title)
	}
	p.HTML = template.HTML(html)
	return &p, nil
}

// NextRevision returns the page as it would be after saving text, without
// writing anything. Its RevID is the id the new revision will get; use
// Update to save it without racing other writers.
func (s *Store) NextRevision(title, text string) (*Page, error) {
	p, err := s.GetPage(title)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if p == nil {
		return &Page{
			Title:    title,
			Created:  now,
			Modified: now,
			Text:     text,
			History:  versionedtext.NewVersionedText(text),
		}, nil
	}
	p.History.Update(text)
	p.Text = text
	p.Modified = now
	return p, nil
}

// SavePage writes p and replaces its rows in the link tables with what md
// recorded, in one transaction.
func (s *Store) SavePage(p *Page, md *wiki.Metadata) error {
	s.updates.Lock()
	defer s.updates.Unlock()
	return s.savePage(p, md)
}

// Update stores text as the next revision of title. Updates run one at a
// time, so each builds on the history the previous one saved. render gets
// the page as it will be stored, sets its HTML and returns the metadata for
// the link tables; it may read from the store.
func (s *Store) Update(title, text string, render func(p *Page) (*wiki.Metadata, error)) (*Page, error) {
	s.updates.Lock()
	defer s.updates.Unlock()

	p, err := s.NextRevision(title, text)
	if err != nil {
		return nil, err
	}
	md, err := render(p)
	if err != nil {
		return nil, err
	}
	if err = s.savePage(p, md); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) savePage(p *Page, md *wiki.Metadata) (err error) {
	history, err := json.Marshal(p.History)
	if err != nil {
		return errors.Wrap(err, "encode history")
	}

	s.Lock()
	defer s.Unlock()

	tx, err := s.DB.Begin()
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(`INSERT OR REPLACE INTO pages (title, text, html, history, created, modified) VALUES (?, ?, ?, ?, ?, ?)`,
		p.Title, p.Text, string(p.HTML), string(history), p.Created, p.Modified)
	if err != nil {
		return errors.Wrapf(err, "save page %s", p.Title)
	}
	if err = s.saveLinks(tx, p.Title, md); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// PageExists implements wiki.PageLookup.
func (s *Store) PageExists(t wiki.Title) (bool, error) {
	s.RLock()
	defer s.RUnlock()

	var n int
	err := s.DB.QueryRow(`SELECT COUNT(*) FROM pages WHERE title = ?`, t.PrefixedDBKey()).Scan(&n)
	if err != nil {
		return false, errors.Wrapf(err, "page exists %s", t.PrefixedDBKey())
	}
	return n > 0, nil
}

// AllPages returns the titles of all pages, sorted.
func (s *Store) AllPages() ([]string, error) {
	return s.strings(`SELECT title FROM pages ORDER BY title`)
}

// Revision returns the text of title as of the snapshot taken at timestamp.
func (s *Store) Revision(title string, timestamp int64) (string, error) {
	p, err := s.GetPage(title)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", errors.Errorf("no page %s", title)
	}
	text, err := p.History.GetPreviousByTimestamp(timestamp)
	return text, errors.Wrapf(err, "revision %d of %s", timestamp, title)
}

func (s *Store) strings(query string, args ...interface{}) (list []string, err error) {
	s.RLock()
	defer s.RUnlock()

	rows, err := s.DB.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err = rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan")
		}
		list = append(list, v)
	}
	return list, errors.Wrap(rows.Err(), "rows")
}
