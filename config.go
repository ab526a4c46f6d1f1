package markdownpages

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"argc.in/markdownpages/pkg/wiki"
)

// DefaultBind is the address Serve listens on when none is configured.
const DefaultBind = ":8152"

type Config struct {
	Bind     string `yaml:"bind"` // interface:port to listen on, defaults to DefaultBind.
	MainPage string `yaml:"main_page"`
	// Private requires the edit password for reading too.
	Private bool `yaml:"private"`
	// EditPasswordHash is a bcrypt hash; when set, saving and uploading
	// need HTTP basic auth with the matching password.
	EditPasswordHash string `yaml:"edit_password_hash"`
	ResizeWidth      int    `yaml:"resize_width"`
	ResizeOnUpload   bool   `yaml:"resize_on_upload"`
	MaxUploadBytes   int64  `yaml:"max_upload_bytes"`
	// InternalHosts are hosts whose links are not marked external.
	InternalHosts []string `yaml:"internal_hosts"`
	// Extensions names optional markdown extensions, e.g. "table".
	Extensions []string    `yaml:"extensions"`
	Wiki       wiki.Config `yaml:"wiki"`
}

func DefaultConfig() Config {
	return Config{
		Bind:           DefaultBind,
		MainPage:       "Main Page",
		ResizeWidth:    1024,
		MaxUploadBytes: 10 << 20,
		Wiki:           wiki.DefaultConfig(),
	}
}

// LoadConfig reads a YAML config file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrap(err, "read config")
	}
	if err = yaml.Unmarshal(b, &config); err != nil {
		return config, errors.Wrapf(err, "parse %s", path)
	}
	return config, nil
}
