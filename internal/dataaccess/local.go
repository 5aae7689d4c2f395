package dataaccess

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/swxlab/swxkit/internal/config"
	kiterrors "github.com/swxlab/swxkit/internal/errors"
	"github.com/swxlab/swxkit/internal/filename"
)

// DirClient serves a directory tree of products through the same
// interface as the archive, for tests and offline work.
type DirClient struct {
	root    string
	mission config.Mission
	log     zerolog.Logger
}

// NewDirClient builds a client over the products under root.
func NewDirClient(root string, mission config.Mission, log zerolog.Logger) *DirClient {
	return &DirClient{
		root:    root,
		mission: mission,
		log:     log.With().Str("component", "dataaccess").Str("root", root).Logger(),
	}
}

// Search walks the tree and returns every product file matching q. Files
// whose names do not follow the mission convention are skipped.
func (c *DirClient) Search(ctx context.Context, q Query) ([]Result, error) {
	q, err := normalize(c.mission, q)
	if err != nil {
		return nil, err
	}

	var results []Result
	err = filepath.WalkDir(c.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		fields, parseErr := filename.Parse(c.mission, d.Name())
		if parseErr != nil {
			c.log.Debug().Str("file", d.Name()).Msg("skipping unrecognized file")
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil {
			return statErr
		}

		rel, relErr := filepath.Rel(c.root, p)
		if relErr != nil {
			return relErr
		}

		r := Result{
			Key:          filepath.ToSlash(rel),
			Bucket:       c.root,
			Fields:       fields,
			Parsed:       true,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		}
		if etag, etagErr := fileETag(p); etagErr == nil {
			r.ETag = etag
		}

		if inWindow(q, r) && matchInstrument(c.mission, q, r) && matchLevel(q, r) {
			results = append(results, r)
		}
		return nil
	})
	if err != nil {
		return nil, kiterrors.NewStorageError(kiterrors.CodeDownloadFailed,
			fmt.Sprintf("walk product directory %s", c.root), err)
	}
	return results, nil
}

// Download copies one product into dir and returns the local path.
func (c *DirClient) Download(ctx context.Context, r Result, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src := filepath.Join(c.root, filepath.FromSlash(r.Key))
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", kiterrors.NewStorageError(kiterrors.CodeObjectNotFound,
				fmt.Sprintf("product %s not found under %s", r.Key, c.root), err)
		}
		return "", kiterrors.NewStorageError(kiterrors.CodeDownloadFailed,
			fmt.Sprintf("open product %s", src), err)
	}
	defer in.Close()

	local := filepath.Join(dir, filepath.Base(src))
	out, err := os.Create(local)
	if err != nil {
		return "", kiterrors.NewStorageError(kiterrors.CodeDownloadFailed,
			fmt.Sprintf("create local file %s", local), err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", kiterrors.NewStorageError(kiterrors.CodeDownloadFailed,
			fmt.Sprintf("copy product to %s", local), err)
	}
	return local, nil
}

// fileETag returns the hex MD5 of a file, matching the ETag a single-part
// object upload would carry.
func fileETag(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
