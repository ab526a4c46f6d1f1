package wiki

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	pages map[string]bool
	files map[string]*File
	err   error
}

func (s *fakeStore) PageExists(t Title) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.pages[t.PrefixedDBKey()], nil
}

func (s *fakeStore) FindFile(t Title) (*File, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.files[t.DBKey], nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pages: map[string]bool{"Exists": true, "Help:Some_topic": true},
		files: map[string]*File{
			"Example.jpg": {
				Name:        "Example.jpg",
				Width:       100,
				Height:      50,
				SHA1:        "abc",
				Description: "A <b>fine</b> example",
				Timestamp:   time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
			},
		},
	}
}

func TestLinkRenderer_MakeLink(t *testing.T) {
	r := NewLinkRenderer(Config{}, newFakeStore())

	html, err := r.MakeLink(Title{DBKey: "Exists"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, `<a href="/wiki/Exists" title="Exists">Exists</a>`, html)

	html, err = r.MakeLink(Title{Namespace: NSHelp, DBKey: "Some_topic", Fragment: "A b"}, "<em>x</em>", nil)
	require.NoError(t, err)
	assert.Equal(t, `<a href="/wiki/Help:Some_topic#A_b" title="Help:Some topic"><em>x</em></a>`, html)

	html, err = r.MakeLink(Title{DBKey: "Missing_page"}, "m", map[string]string{"title": "tip", "rel": "x"})
	require.NoError(t, err)
	assert.Equal(t, `<a href="/index.php?title=Missing_page&amp;action=edit&amp;redlink=1" class="new" title="tip" rel="x">m</a>`, html)

	html, err = r.MakeLink(Title{Namespace: NSSpecial, DBKey: "Upload"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, `<a href="/wiki/Special:Upload" title="Special:Upload">Special:Upload</a>`, html)
}

func TestLinkRenderer_LookupError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("db down")
	r := NewLinkRenderer(Config{}, store)

	_, err := r.MakeLink(Title{DBKey: "Exists"}, "", nil)
	assert.Same(t, store.err, err)
}

func TestLinkRenderer_ArticlePath(t *testing.T) {
	r := NewLinkRenderer(Config{ArticlePath: "/w/index.php?title=$1"}, newFakeStore())
	assert.Equal(t, "/w/index.php?title=A_%26_B", r.ArticleURL(Title{DBKey: "A_&_B"}))
}

func TestLinkRenderer_EditURLEncodesTitle(t *testing.T) {
	r := NewLinkRenderer(Config{}, newFakeStore())
	assert.Equal(t, "/index.php?title=A_%26_B%2BC&action=edit", r.EditURL(Title{DBKey: "A_&_B+C"}))

	html, err := r.MakeLink(Title{DBKey: "A_&_B+C"}, "x", nil)
	require.NoError(t, err)
	assert.Contains(t, html, `href="/index.php?title=A_%26_B%2BC&amp;action=edit&amp;redlink=1"`)
}

func newFileRenderer(t *testing.T, store *fakeStore) *FileRenderer {
	titles, err := NewTitleParser(DefaultLegalTitleChars)
	require.NoError(t, err)
	return NewFileRenderer(Config{}, titles, store, NewLinkRenderer(Config{}, store))
}

func TestFileRenderer_Found(t *testing.T) {
	r := newFileRenderer(t, newFakeStore())

	out, err := r.ResolveFile(FileRequest{Name: "example.jpg", Page: "Main_Page"})
	require.NoError(t, err)
	assert.Equal(t, `<span class="mw-default-size" typeof="mw:File"><a href="/wiki/File:Example.jpg" class="mw-file-description">`+
		`<img alt="A fine example" src="/images/Example.jpg" decoding="async" width="100" height="50" class="mw-file-element" /></a></span>`, out.HTML)
	assert.Equal(t, []FileUsage{{Name: "Example.jpg", Exists: true, SHA1: "abc", Timestamp: "20240301123000"}}, out.Tracking.Images)
}

func TestFileRenderer_Missing(t *testing.T) {
	r := newFileRenderer(t, newFakeStore())

	out, err := r.ResolveFile(FileRequest{Name: "Nope.png"})
	require.NoError(t, err)
	assert.Equal(t, `<span class="mw-default-size" typeof="mw:Error mw:File"><a href="/index.php?title=Special:Upload&amp;wpDestFile=Nope.png" class="new" title="File:Nope.png">`+
		`<span class="mw-file-element mw-broken-media">File:Nope.png</span></a></span>`, out.HTML)
	assert.Equal(t, []FileUsage{{Name: "Nope.png"}}, out.Tracking.Images)
}

func TestFileRenderer_InvalidName(t *testing.T) {
	r := newFileRenderer(t, newFakeStore())

	out, err := r.ResolveFile(FileRequest{Name: "a<b>.png"})
	require.NoError(t, err)
	assert.Equal(t, "[[File:a&lt;b&gt;.png]]", out.HTML)
	assert.Empty(t, out.Tracking.Images)
}

func TestFileRenderer_LookupError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("db down")
	r := newFileRenderer(t, store)

	_, err := r.ResolveFile(FileRequest{Name: "Example.jpg"})
	assert.Same(t, store.err, err)
}
