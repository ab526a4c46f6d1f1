package markdownpages

import (
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/schollz/logger"

	"argc.in/markdownpages/pkg/db"
	"argc.in/markdownpages/pkg/markdown"
	"argc.in/markdownpages/pkg/wiki"
)

// TemplateRender is the data handed to the html templates.
type TemplateRender struct {
	Title     string
	Heading   string
	Content   template.HTML
	Text      string
	Page      *db.Page
	Missing   bool
	Message   string
	EditURL   string
	ViewURL   string
	Items     []template.HTML
	Footer    []template.HTML
	DestFile  string
	UTCOffset int

	wiki *Wiki
}

func NewTemplateRender(w *Wiki) *TemplateRender {
	return &TemplateRender{wiki: w}
}

// getUTCOffsetFromCookie reads the browser's offset from UTC, in hours,
// set by the page script.
func (tr *TemplateRender) getUTCOffsetFromCookie(r *http.Request) {
	c, err := r.Cookie("tz")
	if err != nil {
		return
	}
	offset, err := strconv.Atoi(c.Value)
	if err != nil || offset < -14 || offset > 14 {
		return
	}
	tr.UTCOffset = offset
}

func (tr *TemplateRender) render(rw http.ResponseWriter, status int, name string) error {
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.WriteHeader(status)
	return errors.Wrap(tr.wiki.templates.ExecuteTemplate(rw, name, tr), name)
}

func (tr *TemplateRender) setTitle(t wiki.Title) {
	tr.Title = t.PrefixedText()
	tr.Heading = t.PrefixedText()
	tr.ViewURL = tr.wiki.links.ArticleURL(t)
	tr.EditURL = tr.wiki.links.EditURL(t)
}

func (tr *TemplateRender) link(t wiki.Title, label string) (template.HTML, error) {
	s, err := tr.wiki.links.MakeLink(t, template.HTMLEscapeString(label), nil)
	return template.HTML(s), err
}

// linkTo links to a stored prefixed db key.
func (tr *TemplateRender) linkTo(key string) (template.HTML, error) {
	t, _ := tr.wiki.titles.NewFromText(key)
	if t == nil {
		return template.HTML(template.HTMLEscapeString(key)), nil
	}
	return tr.link(*t, t.PrefixedText())
}

func (tr *TemplateRender) handleView(rw http.ResponseWriter, r *http.Request, t wiki.Title) (err error) {
	if t.Namespace == wiki.NSSpecial {
		return tr.handleSpecial(rw, r, t)
	}
	tr.setTitle(t)

	tr.Page, err = tr.wiki.store.GetPage(t.PrefixedDBKey())
	if err != nil {
		return
	}
	status := http.StatusOK
	if tr.Page == nil {
		tr.Missing = true
		status = http.StatusNotFound
	} else if oldid := r.URL.Query().Get("oldid"); oldid != "" {
		if err = tr.renderRevision(t, oldid); err != nil {
			return
		}
	} else {
		tr.Content = tr.Page.HTML
	}

	if tr.Page != nil {
		categories, err := tr.wiki.store.PageCategories(t.PrefixedDBKey())
		if err != nil {
			return err
		}
		for _, c := range categories {
			l, err := tr.linkTo("Category:" + c)
			if err != nil {
				return err
			}
			tr.Footer = append(tr.Footer, l)
		}
	}

	switch t.Namespace {
	case wiki.NSCategory:
		err = tr.listCategory(t)
	case wiki.NSFile:
		err = tr.listFileUsage(t)
	}
	if err != nil {
		return
	}
	return tr.render(rw, status, "page.html")
}

func (tr *TemplateRender) renderRevision(t wiki.Title, oldid string) error {
	ts, err := strconv.ParseInt(oldid, 10, 64)
	if err != nil {
		return errors.Wrap(err, "oldid")
	}
	text, err := tr.wiki.store.Revision(t.PrefixedDBKey(), ts)
	if err != nil {
		return err
	}
	doc, err := tr.wiki.Render(t, text, 0)
	if err != nil {
		return err
	}
	tr.Message = "This is an old revision of this page."
	tr.Content = template.HTML(doc.HTML)
	return nil
}

func (tr *TemplateRender) listCategory(t wiki.Title) error {
	members, err := tr.wiki.store.PagesInCategory(t.DBKey)
	if err != nil {
		return err
	}
	for _, m := range members {
		l, err := tr.linkTo(m.Page)
		if err != nil {
			return err
		}
		tr.Items = append(tr.Items, l)
	}
	return nil
}

func (tr *TemplateRender) listFileUsage(t wiki.Title) error {
	if f, err := tr.wiki.store.FindFile(t); err != nil {
		return err
	} else if f != nil && tr.Content == "" {
		tr.Content = template.HTML(`<img src="` + template.HTMLEscapeString(tr.wiki.Config.Wiki.UploadPath+"/"+f.Name) + `">`)
	}
	pages, err := tr.wiki.store.FileUsage(t.DBKey)
	if err != nil {
		return err
	}
	return tr.appendLinks(pages)
}

func (tr *TemplateRender) appendLinks(keys []string) error {
	for _, key := range keys {
		l, err := tr.linkTo(key)
		if err != nil {
			return err
		}
		tr.Items = append(tr.Items, l)
	}
	return nil
}

func (tr *TemplateRender) handleSpecial(rw http.ResponseWriter, r *http.Request, t wiki.Title) (err error) {
	tr.setTitle(t)
	name, sub, _ := strings.Cut(t.DBKey, "/")
	switch strings.ToLower(name) {
	case "allpages":
		pages, err := tr.wiki.store.AllPages()
		if err != nil {
			return err
		}
		tr.Heading = "All pages"
		err = tr.appendLinks(pages)
		if err != nil {
			return err
		}
	case "whatlinkshere":
		if sub == "" {
			sub = r.URL.Query().Get("target")
		}
		target, _ := tr.wiki.titles.NewFromText(sub)
		if target == nil {
			http.Error(rw, "bad target", http.StatusBadRequest)
			return nil
		}
		pages, err := tr.wiki.store.WhatLinksHere(target.PrefixedDBKey())
		if err != nil {
			return err
		}
		tr.Heading = "Pages that link to " + target.PrefixedText()
		if err = tr.appendLinks(pages); err != nil {
			return err
		}
	case "linksearch":
		pattern := r.URL.Query().Get("target")
		tr.Heading = "Search external links"
		tr.Text = pattern
		if pattern != "" {
			links, err := tr.wiki.store.LinkSearch(pattern)
			if err != nil {
				return err
			}
			for _, l := range links {
				page, err := tr.linkTo(l.Page)
				if err != nil {
					return err
				}
				tr.Items = append(tr.Items, template.HTML(`<a class="external" rel="nofollow" href="`+
					template.HTMLEscapeString(l.URL)+`">`+template.HTMLEscapeString(l.URL)+`</a> linked from `)+page)
			}
		}
	case "upload":
		tr.Heading = "Upload file"
		tr.DestFile = r.URL.Query().Get("wpDestFile")
		return tr.render(rw, http.StatusOK, "upload.html")
	default:
		tr.Missing = true
		return tr.render(rw, http.StatusNotFound, "page.html")
	}
	return tr.render(rw, http.StatusOK, "list.html")
}

func (tr *TemplateRender) handleSave(rw http.ResponseWriter, r *http.Request, t wiki.Title) error {
	if !tr.wiki.authorized(r) {
		tr.wiki.askForPassword(rw)
		return nil
	}
	if t.Namespace == wiki.NSSpecial || t.Namespace == wiki.NSMedia {
		http.Error(rw, "cannot edit "+t.PrefixedText(), http.StatusBadRequest)
		return nil
	}
	if _, err := tr.wiki.Save(t, r.FormValue("text")); err != nil {
		return err
	}
	http.Redirect(rw, r, tr.wiki.links.ArticleURL(t), http.StatusSeeOther)
	return nil
}

// handleScript serves the index.php entry point: ?title=X&action=edit and
// the links the renderer makes to it.
func (tr *TemplateRender) handleScript(rw http.ResponseWriter, r *http.Request) (err error) {
	t := tr.wiki.Title(r.URL.Query().Get("title"))
	if t == nil {
		main := tr.wiki.mainPage()
		t = &main
	}
	if r.Method == http.MethodPost {
		return tr.handleSave(rw, r, *t)
	}
	if t.Namespace == wiki.NSSpecial || r.URL.Query().Get("action") != "edit" {
		return tr.handleView(rw, r, *t)
	}

	tr.setTitle(*t)
	tr.Heading = "Editing " + t.PrefixedText()
	tr.Page, err = tr.wiki.store.GetPage(t.PrefixedDBKey())
	if err != nil {
		return
	}
	if tr.Page != nil {
		tr.Text = tr.Page.Text
	} else {
		tr.Missing = true
		tr.Heading = "Creating " + t.PrefixedText()
	}
	return tr.render(rw, http.StatusOK, "edit.html")
}

func (tr *TemplateRender) handleUpload(rw http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		tr.Heading = "Upload file"
		tr.DestFile = r.URL.Query().Get("wpDestFile")
		return tr.render(rw, http.StatusOK, "upload.html")
	}
	if !tr.wiki.authorized(r) {
		tr.wiki.askForPassword(rw)
		return nil
	}

	r.Body = http.MaxBytesReader(rw, r.Body, tr.wiki.Config.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return nil
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return errors.Wrap(err, "read upload")
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}
	t, err := tr.wiki.Upload(name, r.FormValue("description"), data)
	if err != nil {
		log.Debug(err)
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return nil
	}
	http.Redirect(rw, r, tr.wiki.links.ArticleURL(*t), http.StatusSeeOther)
	return nil
}

func (w *Wiki) handleImage(rw http.ResponseWriter, r *http.Request) error {
	name := strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(w.Config.Wiki.UploadPath, "/")+"/")
	u, err := w.store.GetUpload(name)
	if err != nil {
		return err
	}
	if u == nil {
		http.NotFound(rw, r)
		return nil
	}
	rw.Header().Set("Content-Type", http.DetectContentType(u.Data))
	rw.Header().Set("Cache-Control", "public, max-age=86400")
	_, err = rw.Write(u.Data)
	return err
}

func (w *Wiki) handleExport(rw http.ResponseWriter, r *http.Request) error {
	if !w.authorized(r) {
		w.askForPassword(rw)
		return nil
	}
	rw.Header().Set("Content-Type", "application/sql; charset=utf-8")
	rw.Header().Set("Content-Disposition", `attachment; filename="markdownpages.sql"`)
	return w.store.Dump(rw)
}

// PreviewRequest is what the editor sends to /ws and /api/render.
type PreviewRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Preview is the rendering of a PreviewRequest.
type Preview struct {
	HTML          string   `json:"html"`
	Categories    []string `json:"categories"`
	Links         []string `json:"links"`
	ExternalLinks []string `json:"externalLinks"`
	Images        []string `json:"images"`
	Error         string   `json:"error,omitempty"`
}

// Preview renders text as it would appear on the page title without saving.
func (w *Wiki) Preview(req PreviewRequest) Preview {
	t := w.Title(req.Title)
	if t == nil {
		main := w.mainPage()
		t = &main
	}
	doc, err := w.Render(*t, req.Text, 0)
	if err != nil {
		return Preview{Error: err.Error()}
	}
	return newPreview(doc)
}

func newPreview(doc *markdown.Document) Preview {
	p := Preview{
		HTML:          doc.HTML,
		Categories:    []string{},
		Links:         []string{},
		ExternalLinks: doc.Metadata.ExternalLinks(),
		Images:        []string{},
	}
	if p.ExternalLinks == nil {
		p.ExternalLinks = []string{}
	}
	for _, c := range doc.Metadata.Categories() {
		p.Categories = append(p.Categories, c.Name)
	}
	for _, l := range doc.Metadata.Links() {
		p.Links = append(p.Links, l.PrefixedDBKey())
	}
	for _, i := range doc.Metadata.Images() {
		p.Images = append(p.Images, i.Name)
	}
	return p
}

func (w *Wiki) handleRender(rw http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		http.Error(rw, "POST only", http.StatusMethodNotAllowed)
		return nil
	}
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return nil
	}
	preview := w.Preview(req)
	rw.Header().Set("Content-Type", "application/json")
	if preview.Error != "" {
		rw.WriteHeader(http.StatusInternalServerError)
	}
	return json.NewEncoder(rw).Encode(preview)
}

func (w *Wiki) handleWebsocket(rw http.ResponseWriter, r *http.Request) error {
	c, err := w.wsupgrader.Upgrade(rw, r, nil)
	if err != nil {
		return errors.Wrap(err, "upgrade")
	}
	defer c.Close()
	for {
		var req PreviewRequest
		if err = c.ReadJSON(&req); err != nil {
			log.Debugf("websocket closed: %s", err)
			return nil
		}
		if err = c.WriteJSON(w.Preview(req)); err != nil {
			return errors.Wrap(err, "write preview")
		}
	}
}
