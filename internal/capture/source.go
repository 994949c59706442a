package capture

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// #region source
// Source supplies frames. Read blocks until the next frame is copied into
// dst and returns false once the device stops producing. *gocv.VideoCapture
// satisfies it.
type Source interface {
	Read(dst *gocv.Mat) bool
	Close() error
}

// ErrSourceClosed is returned by Worker.Run when the source stops producing.
var ErrSourceClosed = errors.New("frame source closed")

// ErrNoCamera is returned when the capture device cannot be opened.
var ErrNoCamera = errors.New("camera unavailable")

// OpenCamera opens a local capture device by index (or a file/stream URL).
// Failure only disables the vision path; callers keep manual input.
func OpenCamera(device any) (Source, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: open %v: %v", ErrNoCamera, device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %v did not open", ErrNoCamera, device)
	}
	return vc, nil
}

// #endregion source
