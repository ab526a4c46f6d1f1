package db

import (
	"database/sql"
	"html/template"
	"sync"
	"time"

	"github.com/schollz/versionedtext"

	"argc.in/markdownpages/pkg/wiki"
)

// Store keeps pages, uploads and the link tables of a wiki in one sqlite
// database.
type Store struct {
	Name string
	DB   *sql.DB
	// Titles normalizes category names before they are stored or looked
	// up. Without it only spaces become underscores.
	Titles *wiki.TitleParser
	sync.RWMutex
	// updates serializes Update and SavePage
	updates sync.Mutex
}

// Page is the basic unit that is saved
type Page struct {
	Title    string                      `json:"title"` // prefixed db key
	Created  time.Time                   `json:"created"`
	Modified time.Time                   `json:"modified"`
	Text     string                      `json:"text"`
	History  versionedtext.VersionedText `json:"history"`
	HTML     template.HTML               `json:"html,omitempty"`
}

// RevID numbers the current revision of the page, starting at 1.
func (p Page) RevID() int64 {
	return int64(len(p.History.GetSnapshots()))
}

func (p Page) CreatedDate(utcOffset int) string {
	return formattedDate(p.Created, utcOffset)
}

func (p Page) ModifiedDate(utcOffset int) string {
	return formattedDate(p.Modified, utcOffset)
}

// Upload is a stored file.
type Upload struct {
	Name        string
	Width       int
	Height      int
	SHA1        string
	Description string
	Data        []byte
	Created     time.Time
}

// Member is a page listed in a category.
type Member struct {
	Page    string
	SortKey string
}

// ExternalLink is one row of the external link table.
type ExternalLink struct {
	Page string
	URL  string
}

// formattedDate renders t shifted by utcOffset hours.
func formattedDate(t time.Time, utcOffset int) string {
	return t.In(time.FixedZone("", utcOffset*60*60)).Format("2 January 2006, 15:04")
}
