/*
Copyright © 2026 the OceanDrift authors.
This file is part of OceanDrift.

OceanDrift is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

OceanDrift is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with OceanDrift.  If not, see <http://www.gnu.org/licenses/>.
*/

package fields

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
)

// A Source opens named data files: day files, coordinate files and
// metadata documents. Implementations exist for a local directory and
// for an HTTP base URL.
type Source interface {
	Open(name string) (io.ReadCloser, error)
}

// DirSource opens files from a directory on local disk.
type DirSource struct {
	Dir string
}

// Open opens the named file under the source directory.
func (s DirSource) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, &IoError{File: name, Err: err}
	}
	return f, nil
}

// HTTPSource fetches files from a base URL. Transient failures
// (network errors and 5xx responses) are retried with exponential
// backoff within a single Open call; a failed Open is final for that
// call and is never retried by the field services themselves.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client

	// MaxElapsedTime bounds the retry window. Zero means 30 seconds.
	MaxElapsedTime time.Duration
}

// Open fetches BaseURL/name and returns the response body.
func (s HTTPSource) Open(name string) (io.ReadCloser, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	url := strings.TrimRight(s.BaseURL, "/") + "/" + name

	var body []byte
	op := func() error {
		resp, err := client.Get(url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("status %s", resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			// Client errors will not improve with retrying.
			return backoff.Permanent(fmt.Errorf("status %s", resp.Status))
		}
		body, err = ioutil.ReadAll(resp.Body)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	if s.MaxElapsedTime > 0 {
		bo.MaxElapsedTime = s.MaxElapsedTime
	} else {
		bo.MaxElapsedTime = 30 * time.Second
	}
	if err := backoff.Retry(op, bo); err != nil {
		return nil, &IoError{File: url, Err: err}
	}
	return ioutil.NopCloser(bytes.NewReader(body)), nil
}
