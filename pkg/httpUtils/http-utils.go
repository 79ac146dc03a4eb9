package http_utils

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/gofab/printq-agent/pkg/file"
)

// DownloadError reports a failed job file download. StatusCode is zero for transport failures.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

var errTooLarge = errors.New("file exceeds size limit")

// DownloadFile fetches fileURL with a GET request, following redirects, and atomically stores the
// body at outputPath. Nothing is written at outputPath unless the whole body was received.
// A maxBytes of zero or less disables the size limit.
func DownloadFile(ctx context.Context, client *http.Client, fileURL, outputPath string, maxBytes int64, fileOps file.FileOperations) (int64, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return 0, &DownloadError{URL: fileURL, Err: errors.Wrap(err, "build request")}
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, &DownloadError{URL: fileURL, Err: errors.Wrap(err, "request failed")}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return 0, &DownloadError{URL: fileURL, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = &limitedReader{r: resp.Body, remaining: maxBytes}
	}

	n, err := fileOps.WriteStreamAtomic(outputPath, body)
	if err != nil {
		return n, &DownloadError{URL: fileURL, Err: errors.Wrapf(err, "store %s", outputPath)}
	}
	return n, nil
}

// limitedReader fails instead of truncating once more than remaining bytes are read.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, errTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errTooLarge
	}
	return n, err
}
