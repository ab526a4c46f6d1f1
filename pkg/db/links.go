package db

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"argc.in/markdownpages/pkg/wiki"
)

func (s *Store) saveLinks(tx *sql.Tx, page string, md *wiki.Metadata) error {
	for _, table := range []string{"categorylinks", "pagelinks", "externallinks", "imagelinks"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE page = ?`, page); err != nil {
			return errors.Wrapf(err, "clear %s", table)
		}
	}
	if md == nil {
		return nil
	}

	for _, c := range md.Categories() {
		if _, err := tx.Exec(`INSERT INTO categorylinks (page, category, sortkey) VALUES (?, ?, ?)`,
			page, s.CategoryKey(c.Name), c.Sort); err != nil {
			return errors.Wrap(err, "categorylinks")
		}
	}
	for _, t := range md.Links() {
		if _, err := tx.Exec(`INSERT INTO pagelinks (page, target) VALUES (?, ?)`, page, t.PrefixedDBKey()); err != nil {
			return errors.Wrap(err, "pagelinks")
		}
	}
	for _, url := range md.ExternalLinks() {
		if _, err := tx.Exec(`INSERT INTO externallinks (page, url) VALUES (?, ?)`, page, url); err != nil {
			return errors.Wrap(err, "externallinks")
		}
	}
	for _, u := range md.Images() {
		if _, err := tx.Exec(`INSERT INTO imagelinks (page, file) VALUES (?, ?)`, page, u.Name); err != nil {
			return errors.Wrap(err, "imagelinks")
		}
	}
	return nil
}

// CategoryKey is the form category names are stored under: the db key of
// the category page.
func (s *Store) CategoryKey(name string) string {
	if s.Titles != nil {
		t, _ := s.Titles.NewFromText("Category:" + name)
		if t != nil && t.Namespace == wiki.NSCategory {
			return t.DBKey
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}

// WhatLinksHere lists the pages linking to target, a prefixed db key.
func (s *Store) WhatLinksHere(target string) ([]string, error) {
	return s.strings(`SELECT page FROM pagelinks WHERE target = ? ORDER BY page`, target)
}

// FileUsage lists the pages embedding the named file.
func (s *Store) FileUsage(name string) ([]string, error) {
	return s.strings(`SELECT page FROM imagelinks WHERE file = ? ORDER BY page`, name)
}

// PagesInCategory lists the members of category ordered by sort key,
// falling back to the page title.
func (s *Store) PagesInCategory(category string) (members []Member, err error) {
	s.RLock()
	defer s.RUnlock()

	rows, err := s.DB.Query(`SELECT page, sortkey FROM categorylinks WHERE category = ?
		ORDER BY CASE WHEN sortkey = '' THEN page ELSE sortkey END, page`, s.CategoryKey(category))
	if err != nil {
		return nil, errors.Wrap(err, "pages in category")
	}
	defer rows.Close()
	for rows.Next() {
		var m Member
		if err = rows.Scan(&m.Page, &m.SortKey); err != nil {
			return nil, errors.Wrap(err, "scan")
		}
		members = append(members, m)
	}
	return members, errors.Wrap(rows.Err(), "rows")
}

// LinkSearch finds external links whose URL contains pattern.
func (s *Store) LinkSearch(pattern string) (links []ExternalLink, err error) {
	s.RLock()
	defer s.RUnlock()

	rows, err := s.DB.Query(`SELECT page, url FROM externallinks WHERE instr(url, ?) > 0 ORDER BY url, page`, pattern)
	if err != nil {
		return nil, errors.Wrap(err, "link search")
	}
	defer rows.Close()
	for rows.Next() {
		var l ExternalLink
		if err = rows.Scan(&l.Page, &l.URL); err != nil {
			return nil, errors.Wrap(err, "scan")
		}
		links = append(links, l)
	}
	return links, errors.Wrap(rows.Err(), "rows")
}

// PageCategories lists the categories page is in, as category db keys.
func (s *Store) PageCategories(page string) ([]string, error) {
	return s.strings(`SELECT category FROM categorylinks WHERE page = ? ORDER BY category`, page)
}
