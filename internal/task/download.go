package task

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/afero"

	"github.com/bassista/go_refresh/internal/logger"
)

const (
	TypeDownload = "download"

	defaultDownloadTimeout = 5 * time.Minute
	userAgent              = "go_refresh/1.0"
)

// DownloadTask fetches URL over HTTP and replaces the file at Path.
// Headers are added to the request, e.g. an API key or an Accept type.
type DownloadTask struct {
	URL     string            `mapstructure:"url" validate:"required,url"`
	Path    string            `mapstructure:"path" validate:"required"`
	Timeout time.Duration     `mapstructure:"timeout" validate:"gte=0"`
	Headers map[string]string `mapstructure:"headers" validate:"dive,keys,required,endkeys"`

	fs     afero.Fs
	client *http.Client
	gate   *Gate
}

// NewDownloadTask creates an empty download task writing through fs.
// A nil client means http.DefaultClient.
func NewDownloadTask(fs afero.Fs, client *http.Client) *DownloadTask {
	if client == nil {
		client = http.DefaultClient
	}
	return &DownloadTask{fs: fs, client: client, gate: NewGate()}
}

// DownloadFactory returns the Factory registered under TypeDownload.
func DownloadFactory(fs afero.Fs, client *http.Client) Factory {
	return func(props map[string]any) (Runner, error) {
		t := NewDownloadTask(fs, client)
		if err := Decode(props, t); err != nil {
			return nil, err
		}
		if err := Validate(t); err != nil {
			return nil, err
		}
		return t, nil
	}
}

func (t *DownloadTask) Run(ctx context.Context) Result {
	started := time.Now()

	if t.URL == "" || t.Path == "" {
		return withTiming(started, Failure("download task requires url and path", errors.New("missing required property")))
	}
	if ctx.Err() != nil {
		return withTiming(started, Cancelled("cancelled before download started"))
	}
	if !t.gate.TryEnter() {
		return withTiming(started, Failure("download skipped", ErrAlreadyRunning))
	}
	defer t.gate.Leave()

	return withTiming(started, Safe(func() Result {
		return t.download(ctx)
	}))
}

func (t *DownloadTask) download(ctx context.Context) Result {
	log := logger.WithComponent("download")

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return Failure("build download request", err)
	}
	req.Header.Set("User-Agent", userAgent)
	for name, value := range t.Headers {
		req.Header.Set(name, value)
	}

	log.Debugf("downloading %s to %s", t.URL, t.Path)
	resp, err := t.client.Do(req)
	if err != nil {
		return Failure(fmt.Sprintf("download %s", t.URL), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Failure(fmt.Sprintf("download %s", t.URL), fmt.Errorf("unexpected HTTP %d", resp.StatusCode))
	}

	n, err := replaceFile(t.fs, t.Path, resp.Body)
	if err != nil {
		return Failure(fmt.Sprintf("store %s", t.Path), err)
	}

	log.Infof("downloaded %d bytes from %s to %s", n, t.URL, t.Path)
	return Success()
}
