/*
Package catalog keeps encoded TGAM images in a sqlite database so that the
same source image is only ever converted once.

Images are addressed by the SHA1 of the source file and the encoded bytes are
stored zstd compressed. Source paths are recorded separately and point at the
image they last produced.
*/
package catalog

import (
	"bytes"
	"crypto/sha1"
	"database/sql"
	"fmt"
	"image"
	_ "image/gif"  // register GIF sources
	_ "image/jpeg" // register JPEG sources
	_ "image/png"  // register PNG sources
	"io"
	"log"

	"github.com/bodgit/tgam"
	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/xfmoulet/qoi" // register QOI sources
)

// DB is a catalog of encoded images.
type DB struct {
	db     *sql.DB
	logger *log.Logger

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// New opens or creates the catalog stored in file.
func New(file string, logger *log.Logger) (*DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS image (id INTEGER PRIMARY KEY NOT NULL, digest TEXT NOT NULL UNIQUE, width INTEGER NOT NULL, height INTEGER NOT NULL, tgam BLOB NOT NULL)"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS source (id INTEGER PRIMARY KEY NOT NULL, path TEXT NOT NULL UNIQUE, image_id INTEGER NOT NULL, FOREIGN KEY(image_id) REFERENCES image(id))"); err != nil {
		db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, err
	}

	return &DB{
		db:     db,
		logger: logger,
		enc:    enc,
		dec:    dec,
	}, nil
}

// Close closes the underlying database.
func (db *DB) Close() error {
	db.dec.Close()
	if err := db.enc.Close(); err != nil {
		db.db.Close()
		return err
	}
	return db.db.Close()
}

// Sum returns the key used for the source image read from r.
func Sum(r io.Reader) (string, error) {
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%X", h.Sum(nil)), nil
}

// Key returns the catalog key for a source SHA1 and the name of the variant
// it was converted with. The empty variant is the source as is.
func Key(sha, variant string) string {
	if variant == "" {
		return sha
	}
	return sha + "-" + variant
}

// Add decodes the source image read from r, encodes it as TGAM and stores it
// unless an image with the same SHA1 already exists. The path is recorded as
// pointing at the image. The id of the image is returned.
func (db *DB) Add(path string, r io.Reader) (int64, error) {
	return db.AddFunc(path, r, "", func(m image.Image) image.Image {
		return m
	})
}

// AddFunc is like Add but passes the decoded source image through fn before
// encoding it. The result is stored under the variant key.
func (db *DB) AddFunc(path string, r io.Reader, variant string, fn func(image.Image) image.Image) (int64, error) {
	h := sha1.New()
	m, _, err := image.Decode(io.TeeReader(r, h))
	if err != nil {
		return 0, err
	}
	// Hash whatever the decoder didn't need
	if _, err := io.Copy(h, r); err != nil {
		return 0, err
	}
	key := Key(fmt.Sprintf("%X", h.Sum(nil)), variant)

	id, err := db.addImage(key, fn(m))
	if err != nil {
		return 0, err
	}

	if err := db.addSource(path, id); err != nil {
		return 0, err
	}

	return id, nil
}

func (db *DB) addImage(key string, m image.Image) (int64, error) {
	var id int64
	switch err := db.db.QueryRow("SELECT id FROM image WHERE digest = ?", key).Scan(&id); err {
	case sql.ErrNoRows:
		b := new(bytes.Buffer)
		if err := tgam.Encode(b, m); err != nil {
			return 0, err
		}
		// Another worker may have stored the same image in the meantime
		if _, err := db.db.Exec("INSERT INTO image (digest, width, height, tgam) VALUES (?, ?, ?, ?) ON CONFLICT(digest) DO NOTHING", key, m.Bounds().Dx(), m.Bounds().Dy(), db.enc.EncodeAll(b.Bytes(), nil)); err != nil {
			return 0, err
		}
		db.logger.Printf("Stored %s (%d bytes)\n", key, b.Len())
		if err := db.db.QueryRow("SELECT id FROM image WHERE digest = ?", key).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	case nil:
		return id, nil
	default:
		return 0, err
	}
}

func (db *DB) addSource(path string, id int64) error {
	if _, err := db.db.Exec("INSERT INTO source (path, image_id) VALUES (?, ?) ON CONFLICT(path) DO UPDATE SET image_id = excluded.image_id", path, id); err != nil {
		return err
	}
	return nil
}

func (db *DB) blob(b []byte) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	return db.dec.DecodeAll(b, nil)
}

// Lookup returns the encoded image stored under key, or nil if there isn't
// one.
func (db *DB) Lookup(key string) ([]byte, error) {
	var b []byte
	switch err := db.db.QueryRow("SELECT tgam FROM image WHERE digest = ?", key).Scan(&b); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		return db.blob(b)
	default:
		return nil, err
	}
}

// LookupPath returns the encoded image last produced for path, or nil if
// there isn't one.
func (db *DB) LookupPath(path string) ([]byte, error) {
	var b []byte
	switch err := db.db.QueryRow("SELECT i.tgam FROM source AS s JOIN image AS i ON s.image_id = i.id WHERE s.path = ?", path).Scan(&b); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		return db.blob(b)
	default:
		return nil, err
	}
}

// Record points path at the already stored image under key. It reports false
// if there is no such image.
func (db *DB) Record(path, key string) (bool, error) {
	var id int64
	switch err := db.db.QueryRow("SELECT id FROM image WHERE digest = ?", key).Scan(&id); err {
	case sql.ErrNoRows:
		return false, nil
	case nil:
		return true, db.addSource(path, id)
	default:
		return false, err
	}
}
