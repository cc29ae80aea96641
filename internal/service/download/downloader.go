package download

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	domain "github.com/oshokin/self-updater/internal/domain/update"
	"github.com/oshokin/self-updater/internal/logger"
	"github.com/oshokin/self-updater/internal/version"
)

const (
	// DefaultConnectTimeout bounds dialing and waiting for response headers.
	DefaultConnectTimeout = 30 * time.Second

	// acceptHeader asks the server for raw bytes.
	acceptHeader = "application/octet-stream"

	// progressInterval is how many bytes pass between debug progress lines.
	progressInterval = 10 * 1024 * 1024
)

var (
	// ErrNetwork wraps every failure that happens before or during the transfer
	// at the transport level, as opposed to an HTTP error status.
	ErrNetwork = errors.New("network error")
	// errNilDestination is returned when no destination writer is given.
	errNilDestination = errors.New("destination is not set")
)

// Downloader streams an HTTP response body into a writer.
type Downloader struct {
	// client performs the request; it has no total timeout so large files can finish.
	client *http.Client
	// userAgent identifies the tool to the server.
	userAgent string
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Downloader) {
		if client != nil {
			d.client = client
		}
	}
}

// WithConnectTimeout sets the dial and response header timeout of the default client.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(d *Downloader) {
		if timeout > 0 {
			d.client = newHTTPClient(timeout)
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(d *Downloader) {
		if userAgent != "" {
			d.userAgent = userAgent
		}
	}
}

// New returns a Downloader with a default client and User-Agent.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		client:    newHTTPClient(DefaultConnectTimeout),
		userAgent: version.UserAgent(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// newHTTPClient builds a client whose timeouts cover connection setup only.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport.
	transport.DialContext = (&net.Dialer{
		Timeout:   timeout,
		KeepAlive: timeout,
	}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout

	return &http.Client{
		Transport: transport,
	}
}

// Download sends a GET to rawURL and streams the body into destination.
// bufferSize is a buffering hint only, it never limits the payload size.
//
// A non-nil Outcome is returned whenever a status code was received, even if
// the body transfer was later interrupted; the error then wraps ErrNetwork.
func (d *Downloader) Download(
	ctx context.Context,
	rawURL string,
	destination io.Writer,
	bufferSize int,
) (*domain.Outcome, error) {
	if destination == nil {
		return nil, errNilDestination
	}

	if bufferSize <= 0 {
		bufferSize = domain.DefaultBufferSize
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", acceptHeader)

	started := time.Now()

	response, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	logger.DebugKV(ctx, "Response received",
		"status", response.StatusCode,
		"content_length", response.ContentLength)

	counter := &countingWriter{
		ctx:      ctx,
		writer:   destination,
		url:      rawURL,
		total:    response.ContentLength,
		interval: progressInterval,
	}

	buffered := bufio.NewWriterSize(counter, bufferSize)

	_, copyErr := io.Copy(buffered, response.Body)
	flushErr := buffered.Flush()

	outcome := &domain.Outcome{
		StatusCode:   response.StatusCode,
		BytesWritten: counter.written,
		Elapsed:      time.Since(started),
	}

	if copyErr != nil {
		return outcome, fmt.Errorf("%w: transfer interrupted: %w", ErrNetwork, copyErr)
	}

	if flushErr != nil {
		return outcome, fmt.Errorf("write destination: %w", flushErr)
	}

	return outcome, nil
}

// countingWriter counts bytes that actually reached the destination
// and logs progress at debug level.
type countingWriter struct {
	// ctx carries the logger.
	ctx context.Context //nolint:containedctx // Used only for progress logging.
	// writer is the real destination.
	writer io.Writer
	// url is logged with progress lines.
	url string
	// total is the announced content length, or -1 when unknown.
	total int64
	// interval is the number of bytes between progress lines.
	interval int64

	// written is the running count of bytes accepted by writer.
	written int64
	// sinceReport counts bytes since the last progress line.
	sinceReport int64
}

// Write implements io.Writer.
func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)

	c.written += int64(n)
	c.sinceReport += int64(n)

	if c.sinceReport >= c.interval {
		c.sinceReport = 0
		c.report()
	}

	return n, err
}

// report logs how much has been written so far.
func (c *countingWriter) report() {
	if c.total > 0 {
		logger.DebugKV(c.ctx, "Download progress",
			"url", c.url,
			"downloaded", humanize.Bytes(uint64(c.written)), //nolint:gosec // written is never negative.
			"total", humanize.Bytes(uint64(c.total)),
			"percent", humanize.FtoaWithDigits(float64(c.written)*100/float64(c.total), 2))

		return
	}

	logger.DebugKV(c.ctx, "Download progress",
		"url", c.url,
		"downloaded", humanize.Bytes(uint64(c.written))) //nolint:gosec // written is never negative.
}
