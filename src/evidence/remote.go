package evidence

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/reunite-app/reunite/src/webclient"
)

const remotePath = "/claims/"

// RemoteStore talks to an HTTP object store: PUT to write, DELETE to remove.
// Objects live under <base>/claims/<key>, so the key is recoverable from the
// public URL alone.
type RemoteStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewRemoteStore(baseURL, token string) *RemoteStore {
	return &RemoteStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: webclient.NewDefault(30 * time.Second),
	}
}

func (s *RemoteStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	url := s.baseURL + remotePath + objectKey(data, contentType)

	_, _, err := webclient.DoWithRetry(ctx, 2, time.Second, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", contentType)
		if s.token != "" {
			req.Header.Set("Authorization", "Bearer "+s.token)
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 300 {
			return resp.StatusCode, body, fmt.Errorf("evidence upload: status %d", resp.StatusCode)
		}
		return resp.StatusCode, body, nil
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

// Delete removes the object the URL points to. 404 counts as success:
// deleting a non-existent object is not an error.
func (s *RemoteStore) Delete(ctx context.Context, url string) error {
	if !strings.HasPrefix(url, s.baseURL+remotePath) {
		return fmt.Errorf("not a remote evidence url: %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("evidence delete: status %d", resp.StatusCode)
	}
	return nil
}
