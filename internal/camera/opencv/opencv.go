// Package opencv provides the gocv-backed capture device and QR decoder.
package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"sync"

	"github.com/kozaktomas/attendance/internal/camera"
	"gocv.io/x/gocv"
)

// Device captures frames from a webcam or stream URL.
type Device struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
	mu      sync.Mutex
}

// parseDevice turns "0" into a device index and leaves URLs and paths untouched.
func parseDevice(device string) any {
	device = strings.TrimSpace(device)
	if id, err := strconv.Atoi(device); err == nil {
		return id
	}
	return device
}

// Opener returns a camera.Opener for the device at the requested preview size.
func Opener(device string, width, height int) camera.Opener {
	return func(ctx context.Context) (camera.Device, error) {
		return Open(device, width, height)
	}
}

// Open opens the capture device.
func Open(device string, width, height int) (*Device, error) {
	capture, err := gocv.OpenVideoCapture(parseDevice(device))
	if err != nil {
		return nil, fmt.Errorf("open video capture %s: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video capture %s not opened", device)
	}
	if width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
	}
	if height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return &Device{capture: capture, frame: gocv.NewMat()}, nil
}

// Read grabs the next frame and converts it to an image.
func (d *Device) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // cancellation is returned as is
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if ok := d.capture.Read(&d.frame); !ok {
		return nil, errors.New("capture read failed")
	}
	if d.frame.Empty() {
		return nil, errors.New("empty frame")
	}
	img, err := d.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

// Close releases the capture device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame.Close()
	if err := d.capture.Close(); err != nil {
		return fmt.Errorf("close video capture: %w", err)
	}
	return nil
}

// QRDecoder reads QR code payloads from frames.
type QRDecoder struct {
	mu       sync.Mutex
	detector gocv.QRCodeDetector
}

// NewQRDecoder creates a QR decoder. Close releases it.
func NewQRDecoder() *QRDecoder {
	return &QRDecoder{detector: gocv.NewQRCodeDetector()}
}

// Decode returns the payload of the first QR code in img, or "" when none is found.
func (q *QRDecoder) Decode(img image.Image) (string, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return "", fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	points := gocv.NewMat()
	defer points.Close()
	straight := gocv.NewMat()
	defer straight.Close()

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.detector.DetectAndDecode(mat, &points, &straight), nil
}

// Close releases the detector.
func (q *QRDecoder) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.detector.Close(); err != nil {
		return fmt.Errorf("close qr detector: %w", err)
	}
	return nil
}
