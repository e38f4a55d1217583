package cv

import (
	"context"
)

// FrameSource supplies raw screen bitmaps. Implementations return a
// DeviceError when the underlying transport fails.
type FrameSource interface {
	Capture(ctx context.Context) (*Frame, error)
}

// CropSink persists debugging/labeling crops. name is a file-safe base name
// without extension.
type CropSink interface {
	PersistCrop(frame *Frame, name string) error
}
