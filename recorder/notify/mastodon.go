package notify

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/the-mace/evtools/common"
)

// MastodonPoster posts statuses through the Mastodon REST API with an already issued token.
type MastodonPoster struct {
	server     string
	token      string
	httpClient *http.Client
}

func NewMastodonPoster(conf common.MastodonConfig) *MastodonPoster {
	return &MastodonPoster{
		server:     strings.TrimSuffix(conf.Server, "/"),
		token:      conf.Token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type mediaAttachment struct {
	ID string `json:"id"`
}

func (m *MastodonPoster) Post(ctx context.Context, text, mediaPath string) error {
	form := url.Values{}
	form.Set("status", text)
	if mediaPath != "" {
		id, err := m.uploadMedia(ctx, mediaPath)
		if err != nil {
			return err
		}
		form.Add("media_ids[]", id)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.server+"/api/v1/statuses", strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "cannot build status request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, err = m.do(req)
	return err
}

func (m *MastodonPoster) uploadMedia(ctx context.Context, mediaPath string) (string, error) {
	f, err := os.Open(mediaPath)
	if err != nil {
		return "", errors.Wrapf(err, "cannot open media %s", mediaPath)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(mediaPath))
	if err != nil {
		return "", errors.Wrap(err, "cannot build media upload")
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", errors.Wrapf(err, "cannot read media %s", mediaPath)
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "cannot build media upload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.server+"/api/v2/media", &body)
	if err != nil {
		return "", errors.Wrap(err, "cannot build media request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	payload, err := m.do(req)
	if err != nil {
		return "", err
	}

	var attachment mediaAttachment
	if err := json.Unmarshal(payload, &attachment); err != nil {
		return "", errors.Wrap(err, "cannot decode media response")
	}
	if attachment.ID == "" {
		return "", errors.New("media upload returned no id")
	}
	return attachment.ID, nil
}

func (m *MastodonPoster) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+m.token)
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s failed", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read response")
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.Wrapf(ErrAuth, "%s returned %s", req.URL.Path, resp.Status)
	case resp.StatusCode >= 300:
		return nil, errors.Errorf("%s returned %s: %.200s", req.URL.Path, resp.Status, payload)
	}
	return payload, nil
}
