package releases

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
)

const userAgent = "relaunch-updater/1.0"

// download fetches url into destPath, logging progress in quarter steps.
func download(ctx context.Context, client *http.Client, url, destPath string, log *slog.Logger) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	reader := &progressReader{reader: resp.Body, total: resp.ContentLength, log: log}
	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		os.Remove(destPath)
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return nil
}

// progressReader logs each time another quarter of a known-size body is read.
type progressReader struct {
	reader     io.Reader
	total      int64
	downloaded int64
	reported   int
	log        *slog.Logger
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.downloaded += int64(n)
		if pr.total > 0 && pr.log != nil {
			step := int(pr.downloaded * 4 / pr.total)
			if step > pr.reported {
				pr.reported = step
				pr.log.Debug("Download progress", "percent", step*25, "bytes", pr.downloaded, "total", pr.total)
			}
		}
	}
	return n, err
}
