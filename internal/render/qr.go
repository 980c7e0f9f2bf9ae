package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// QRSource turns a payload into a QR code bitmap of roughly size pixels.
type QRSource interface {
	QRCode(ctx context.Context, payload string, size int) (image.Image, error)
}

// SignOffURL is the payload printed on posters.
func SignOffURL(origin, documentID string) string {
	return strings.TrimRight(origin, "/") + "/sign-off/" + url.PathEscape(documentID)
}

// RemoteQR fetches the bitmap from a public QR image service.
type RemoteQR struct {
	BaseURL string
	Client  *http.Client
}

func NewRemoteQR(baseURL string, timeout time.Duration) *RemoteQR {
	return &RemoteQR{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (q *RemoteQR) URL(payload string, size int) string {
	dim := strconv.Itoa(size)
	v := url.Values{}
	v.Set("size", dim+"x"+dim)
	v.Set("data", payload)
	return q.BaseURL + "?" + v.Encode()
}

func (q *RemoteQR) QRCode(ctx context.Context, payload string, size int) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.URL(payload, size), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build QR request: %w", err)
	}
	resp, err := q.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch QR code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("QR service returned %s", resp.Status)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to decode QR image: %w", err)
	}
	return img, nil
}

// LocalQR encodes in process.
type LocalQR struct {
	Level qrcode.RecoveryLevel
}

func (q LocalQR) QRCode(_ context.Context, payload string, size int) (image.Image, error) {
	code, err := qrcode.New(payload, q.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	return code.Image(size), nil
}

// FallbackQR tries Primary and falls back to Secondary on any error.
type FallbackQR struct {
	Primary   QRSource
	Secondary QRSource
	Logger    *zap.Logger
}

func (q FallbackQR) QRCode(ctx context.Context, payload string, size int) (image.Image, error) {
	img, err := q.Primary.QRCode(ctx, payload, size)
	if err == nil {
		return img, nil
	}
	if q.Logger != nil {
		q.Logger.Warn("Primary QR source failed, using fallback", zap.Error(err))
	}
	return q.Secondary.QRCode(ctx, payload, size)
}

// NewQRSource builds the configured source. "local" encodes in process;
// anything else uses the remote service with local fallback.
func NewQRSource(provider, serviceURL string, timeout time.Duration, logger *zap.Logger) QRSource {
	local := LocalQR{Level: qrcode.Medium}
	if provider == "local" {
		return local
	}
	return FallbackQR{
		Primary:   NewRemoteQR(serviceURL, timeout),
		Secondary: local,
		Logger:    logger,
	}
}

// EncodePNG encodes a bitmap losslessly.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
