package markdownpages

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/schollz/logger"
	"golang.org/x/crypto/bcrypt"

	"argc.in/markdownpages/pkg/db"
	"argc.in/markdownpages/pkg/markdown"
	"argc.in/markdownpages/pkg/wiki"
)

type Wiki struct {
	Config     Config
	templates  *template.Template
	store      *db.Store
	titles     *wiki.TitleParser
	links      *wiki.LinkRenderer
	markdown   *markdown.Parser
	wsupgrader websocket.Upgrader
	// articlePrefix is the path pages are served under, e.g. "/wiki/".
	articlePrefix string
}

func New(store *db.Store, config Config) (*Wiki, error) {
	if config.Bind == "" {
		config.Bind = DefaultBind
	}
	if config.MainPage == "" {
		config.MainPage = DefaultConfig().MainPage
	}
	config.Wiki = config.Wiki.WithDefaults()

	articlePrefix, _, ok := strings.Cut(config.Wiki.ArticlePath, "$1")
	if !ok || !strings.HasPrefix(articlePrefix, "/") || strings.Contains(articlePrefix, "?") {
		return nil, errors.Errorf("article path %q must look like /wiki/$1", config.Wiki.ArticlePath)
	}

	titles, err := wiki.NewTitleParser(config.Wiki.LegalTitleChars)
	if err != nil {
		return nil, err
	}
	if store.Titles == nil {
		store.Titles = titles
	}
	links := wiki.NewLinkRenderer(config.Wiki, store)
	parser, err := markdown.NewParser(markdown.Config{
		LegalTitleChars: config.Wiki.LegalTitleChars,
		InternalHosts:   config.InternalHosts,
		Extensions:      config.Extensions,
		Files:           wiki.NewFileRenderer(config.Wiki, titles, store, links),
		URLs:            wiki.NewURLUtils(config.Wiki.URLProtocols),
		Titles:          titles,
		Links:           links,
	})
	if err != nil {
		return nil, errors.Wrap(err, "markdown parser")
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	return &Wiki{
		Config:        config,
		store:         store,
		titles:        titles,
		links:         links,
		markdown:      parser,
		templates:     templates,
		articlePrefix: articlePrefix,
		wsupgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}, nil
}

func (w *Wiki) Serve() (err error) {
	log.Infof("listening on %v", w.Config.Bind)
	http.HandleFunc("/", w.Handler)
	return http.ListenAndServe(w.Config.Bind, nil)
}

func (w *Wiki) Handler(rw http.ResponseWriter, r *http.Request) {
	t := time.Now().UTC()
	out := &responseWriter{ResponseWriter: rw}
	if err := w.Handle(out, r); err != nil {
		out.fail(err)
	}
	log.Infof("%v %v %v %s", r.RemoteAddr, r.Method, r.URL.Path, time.Since(t))
}

func (w *Wiki) Handle(rw http.ResponseWriter, r *http.Request) (err error) {
	// very special paths
	if r.URL.Path == "/robots.txt" {
		rw.Write([]byte("User-agent: *\nDisallow: /index.php\n"))
		return
	} else if strings.HasPrefix(r.URL.Path, "/static/") {
		staticFiles.ServeHTTP(rw, r)
		return
	}

	if w.Config.Private && !w.authorized(r) {
		w.askForPassword(rw)
		return
	}

	tr := NewTemplateRender(w)
	tr.getUTCOffsetFromCookie(r)

	switch {
	case r.URL.Path == "/":
		http.Redirect(rw, r, w.links.ArticleURL(w.mainPage()), http.StatusFound)
	case r.URL.Path == "/ws":
		return w.handleWebsocket(rw, r)
	case r.URL.Path == "/api/render":
		return w.handleRender(rw, r)
	case r.URL.Path == "/upload":
		return tr.handleUpload(rw, r)
	case r.URL.Path == "/export":
		return w.handleExport(rw, r)
	case strings.HasPrefix(r.URL.Path, strings.TrimSuffix(w.Config.Wiki.UploadPath, "/")+"/"):
		return w.handleImage(rw, r)
	case r.URL.Path == w.Config.Wiki.Script:
		return tr.handleScript(rw, r)
	case strings.HasPrefix(r.URL.Path, w.articlePrefix):
		name := strings.TrimPrefix(r.URL.Path, w.articlePrefix)
		t, _ := w.titles.NewFromText(name)
		if t == nil {
			http.Error(rw, "bad title", http.StatusBadRequest)
			return
		}
		if r.Method == http.MethodPost {
			return tr.handleSave(rw, r, *t)
		}
		return tr.handleView(rw, r, *t)
	default:
		http.NotFound(rw, r)
	}
	return
}

// Title normalizes text into a page title, nil if it is not valid.
func (w *Wiki) Title(text string) *wiki.Title {
	t, _ := w.titles.NewFromText(text)
	return t
}

func (w *Wiki) mainPage() wiki.Title {
	if t, _ := w.titles.NewFromText(w.Config.MainPage); t != nil {
		return *t
	}
	return wiki.Title{DBKey: "Main_Page"}
}

// Render converts the markdown text of page at revision revID. The HTML of
// the returned document is already wrapped.
func (w *Wiki) Render(page wiki.Title, text string, revID int64) (*markdown.Document, error) {
	doc, err := w.markdown.ConvertWithOptions(text, markdown.ConvertOptions{
		Page:  page.PrefixedDBKey(),
		RevID: revID,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "render %s", page.PrefixedText())
	}
	doc.HTML = doc.Metadata.Wrap(doc.HTML)
	return doc, nil
}

// Save stores a new revision of page and updates the link tables from its
// rendering.
func (w *Wiki) Save(page wiki.Title, text string) (*db.Page, error) {
	p, err := w.store.Update(page.PrefixedDBKey(), text, func(p *db.Page) (*wiki.Metadata, error) {
		doc, err := w.Render(page, text, p.RevID())
		if err != nil {
			return nil, err
		}
		p.HTML = template.HTML(doc.HTML)
		return doc.Metadata, nil
	})
	if err != nil {
		return nil, err
	}
	log.Debugf("saved %s revision %d", p.Title, p.RevID())
	return p, nil
}

// Upload stores an image as File:name.
func (w *Wiki) Upload(name, description string, data []byte) (*wiki.Title, error) {
	t, _ := w.titles.NewFromText("File:" + name)
	if t == nil || t.Namespace != wiki.NSFile {
		return nil, errors.Errorf("bad file name %q", name)
	}
	width := 0
	if w.Config.ResizeOnUpload {
		width = w.Config.ResizeWidth
	}
	if _, err := w.store.SaveUpload(t.DBKey, description, data, width); err != nil {
		return nil, err
	}
	return t, nil
}

func (w *Wiki) authorized(r *http.Request) bool {
	if w.Config.EditPasswordHash == "" {
		return true
	}
	_, password, ok := r.BasicAuth()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(w.Config.EditPasswordHash), []byte(password)) == nil
}

func (w *Wiki) askForPassword(rw http.ResponseWriter) {
	rw.Header().Set("WWW-Authenticate", `Basic realm="markdownpages"`)
	http.Error(rw, "password required", http.StatusUnauthorized)
}

// HashPassword returns the bcrypt hash to put in EditPasswordHash.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), errors.Wrap(err, "hash password")
}
