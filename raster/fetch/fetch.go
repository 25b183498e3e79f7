/*
Copyright © 2024 the geo2fds authors.
This file is part of geo2fds.

geo2fds is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

geo2fds is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with geo2fds.  If not, see <http://www.gnu.org/licenses/>.
*/


// Package fetch makes remote raster layers available as local files.
package fetch

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/ctessum/requestcache"
	log "github.com/sirupsen/logrus"
	"gocloud.dev/blob"
	"golang.org/x/net/context/ctxhttp"

	// Bucket schemes.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

// IsRemote reports whether src is a URL rather than a local path.
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "s3", "gs", "file":
		return true
	}
	return false
}

// Fetcher downloads remote layers into Dir. Each source is downloaded
// at most once per process, and not at all when Dir already holds it.
type Fetcher struct {
	Dir string

	// Client is used for http and https sources. http.DefaultClient is
	// used when nil.
	Client *http.Client

	// NewBackOff returns the retry policy of a single download.
	NewBackOff func() backoff.BackOff

	once  sync.Once
	cache *requestcache.Cache
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	return backoff.WithMaxRetries(b, 5)
}

// LocalPath returns the file src is stored in once downloaded.
func (f *Fetcher) LocalPath(src string) string {
	u, err := url.Parse(src)
	name := path.Base(src)
	if err == nil && u.Path != "" {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		name = "layer"
	}
	return filepath.Join(f.Dir, name)
}

// Local returns a local path holding src. Local paths are returned
// unchanged.
func (f *Fetcher) Local(ctx context.Context, src string) (string, error) {
	if !IsRemote(src) {
		return src, nil
	}
	f.once.Do(func() {
		f.cache = requestcache.NewCache(f.download, 1, requestcache.Deduplicate(), requestcache.Memory(100))
	})
	r, err := f.cache.NewRequest(ctx, src, src).Result()
	if err != nil {
		return "", err
	}
	return r.(string), nil
}

func (f *Fetcher) download(ctx context.Context, request interface{}) (interface{}, error) {
	src := request.(string)
	dst := f.LocalPath(src)
	if _, err := os.Stat(dst); err == nil {
		log.WithFields(log.Fields{"layer": src, "path": dst}).Warn("fetch: remote layer already downloaded, reusing local copy")
		return dst, nil
	}
	if err := os.MkdirAll(f.Dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	tmp, err := ioutil.TempFile(f.Dir, ".download")
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer os.Remove(tmp.Name())

	nb := f.NewBackOff
	if nb == nil {
		nb = defaultBackOff
	}
	op := func() error {
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if err := tmp.Truncate(0); err != nil {
			return err
		}
		return f.copy(ctx, tmp, src)
	}
	if err := backoff.Retry(op, backoff.WithContext(nb(), ctx)); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("fetch: downloading %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	log.WithFields(log.Fields{"layer": src, "path": dst}).Warn("fetch: remote layer downloaded")
	return dst, nil
}

func (f *Fetcher) copy(ctx context.Context, w io.Writer, src string) error {
	u, err := url.Parse(src)
	if err != nil {
		return err
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		client := f.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := ctxhttp.Get(ctx, client, src)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: %s", src, resp.Status)
		}
		_, err = io.Copy(w, resp.Body)
		return err
	default:
		bucketURL, key := splitBucket(u)
		bucket, err := blob.OpenBucket(ctx, bucketURL)
		if err != nil {
			return err
		}
		defer bucket.Close()
		r, err := bucket.NewReader(ctx, key, nil)
		if err != nil {
			return err
		}
		defer r.Close()
		_, err = io.Copy(w, r)
		return err
	}
}

// splitBucket splits a bucket object URL into the URL of the bucket and
// the key of the object.
func splitBucket(u *url.URL) (bucketURL, key string) {
	b := *u
	if strings.EqualFold(u.Scheme, "file") {
		b.Path = path.Dir(u.Path)
		return b.String(), path.Base(u.Path)
	}
	b.Path = ""
	return b.String(), strings.TrimPrefix(u.Path, "/")
}
