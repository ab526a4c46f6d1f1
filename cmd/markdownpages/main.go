package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	log "github.com/schollz/logger"
	"gopkg.in/yaml.v3"

	"argc.in/markdownpages"
	"argc.in/markdownpages/pkg/db"
	"argc.in/markdownpages/pkg/wiki"
)

var CLI struct {
	Config string `short:"c" help:"Configuration file path (optional)" type:"path"`
	DB     string `short:"d" help:"Database file" default:"markdownpages.db" type:"path"`
	Debug  bool   `short:"v" help:"Enable debug logging"`

	Serve struct {
		Bind string `short:"b" help:"interface:port to listen on, overrides the config file"`
	} `cmd:"" help:"Serve the wiki over HTTP"`

	Render struct {
		File     string `arg:"" help:"Markdown file to render" type:"existingfile"`
		Title    string `short:"t" help:"Page title the file is rendered as" default:"Main Page"`
		Metadata bool   `short:"m" help:"Print the collected metadata as YAML after the HTML"`
	} `cmd:"" help:"Render a markdown file against the wiki and print the HTML"`

	Dump struct{} `cmd:"" help:"Write an SQL dump of the database to stdout"`

	HashPassword struct {
		Password string `arg:"" help:"Password to hash"`
	} `cmd:"" help:"Print a bcrypt hash for edit_password_hash"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("markdownpages"),
		kong.Description("A wiki whose pages are written in markdown."))

	if CLI.Debug {
		log.SetLevel("debug")
	} else {
		log.SetLevel("info")
	}

	var err error
	switch ctx.Command() {
	case "serve":
		err = runServe()
	case "render <file>":
		err = runRender()
	case "dump":
		err = runDump()
	case "hash-password <password>":
		var hash string
		if hash, err = markdownpages.HashPassword(CLI.HashPassword.Password); err == nil {
			fmt.Println(hash)
		}
	}
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func loadConfig() (markdownpages.Config, error) {
	if CLI.Config == "" {
		return markdownpages.DefaultConfig(), nil
	}
	return markdownpages.LoadConfig(CLI.Config)
}

func open() (*markdownpages.Wiki, *db.Store, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if CLI.Serve.Bind != "" {
		config.Bind = CLI.Serve.Bind
	}
	store, err := db.Open(CLI.DB)
	if err != nil {
		return nil, nil, err
	}
	w, err := markdownpages.New(store, config)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return w, store, nil
}

func runServe() error {
	w, store, err := open()
	if err != nil {
		return err
	}
	defer store.Close()
	return w.Serve()
}

// metadata is the YAML form of what a render collected.
type metadata struct {
	Categories    []wiki.Category  `yaml:"categories"`
	Links         []string         `yaml:"links"`
	ExternalLinks []string         `yaml:"external_links"`
	Images        []wiki.FileUsage `yaml:"images"`
}

func runRender() error {
	text, err := os.ReadFile(CLI.Render.File)
	if err != nil {
		return errors.Wrap(err, "read")
	}
	w, store, err := open()
	if err != nil {
		return err
	}
	defer store.Close()

	t := w.Title(CLI.Render.Title)
	if t == nil {
		return errors.Errorf("bad title %q", CLI.Render.Title)
	}

	doc, err := w.Render(*t, string(text), 0)
	if err != nil {
		return err
	}
	fmt.Println(doc.HTML)
	if !CLI.Render.Metadata {
		return nil
	}

	m := metadata{
		Categories:    doc.Metadata.Categories(),
		ExternalLinks: doc.Metadata.ExternalLinks(),
		Images:        doc.Metadata.Images(),
	}
	for _, l := range doc.Metadata.Links() {
		m.Links = append(m.Links, l.PrefixedDBKey())
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err = enc.Encode(m); err != nil {
		return errors.Wrap(err, "metadata")
	}
	return enc.Close()
}

func runDump() error {
	store, err := db.Open(CLI.DB)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Dump(os.Stdout)
}
