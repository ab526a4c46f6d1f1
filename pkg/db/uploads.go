package db

import (
	"bytes"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	log "github.com/schollz/logger"

	"argc.in/markdownpages/pkg/wiki"
)

// SaveUpload stores an image under name, a db key in the File namespace.
// Images wider than resizeWidth are scaled down first; zero keeps the
// original.
func (s *Store) SaveUpload(name, description string, data []byte, resizeWidth int) (*wiki.File, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", name)
	}

	if resizeWidth > 0 && img.Bounds().Dx() > resizeWidth {
		format, err := imaging.FormatFromFilename(name)
		if err != nil {
			return nil, errors.Wrapf(err, "format of %s", name)
		}
		log.Debugf("resizing %s from %d to %d wide", name, img.Bounds().Dx(), resizeWidth)
		img = imaging.Resize(img, resizeWidth, 0, imaging.Lanczos)
		var buf bytes.Buffer
		if err = imaging.Encode(&buf, img, format); err != nil {
			return nil, errors.Wrapf(err, "encode %s", name)
		}
		data = buf.Bytes()
	}

	sum := sha1.Sum(data)
	u := Upload{
		Name:        name,
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		SHA1:        hex.EncodeToString(sum[:]),
		Description: description,
		Data:        data,
		Created:     time.Now().UTC(),
	}

	s.Lock()
	defer s.Unlock()
	_, err = s.DB.Exec(`INSERT OR REPLACE INTO uploads (name, width, height, sha1, description, data, created) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Name, u.Width, u.Height, u.SHA1, u.Description, u.Data, u.Created)
	if err != nil {
		return nil, errors.Wrapf(err, "save upload %s", name)
	}
	return u.File(), nil
}

// GetUpload returns the stored upload, or nil.
func (s *Store) GetUpload(name string) (*Upload, error) {
	s.RLock()
	defer s.RUnlock()

	u := Upload{Name: name}
	err := s.DB.QueryRow(`SELECT width, height, sha1, description, data, created FROM uploads WHERE name = ?`, name).
		Scan(&u.Width, &u.Height, &u.SHA1, &u.Description, &u.Data, &u.Created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get upload %s", name)
	}
	return &u, nil
}

// FindFile implements wiki.FileLookup.
func (s *Store) FindFile(t wiki.Title) (*wiki.File, error) {
	if t.Namespace != wiki.NSFile && t.Namespace != wiki.NSMedia {
		return nil, nil
	}
	u, err := s.GetUpload(t.DBKey)
	if err != nil || u == nil {
		return nil, err
	}
	return u.File(), nil
}

func (u Upload) File() *wiki.File {
	return &wiki.File{
		Name:        u.Name,
		Width:       u.Width,
		Height:      u.Height,
		SHA1:        u.SHA1,
		Description: u.Description,
		Timestamp:   u.Created,
	}
}
