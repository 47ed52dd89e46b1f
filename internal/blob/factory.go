package blob

import (
	"context"
	"errors"
	"fmt"

	"sanctioncore/internal/config"
	"sanctioncore/internal/infra/blob/fs"
	"sanctioncore/internal/infra/blob/memory"
	"sanctioncore/internal/infra/blob/s3"
)

// DriverNone disables blob storage.
const DriverNone Driver = "none"

// ErrDisabled is returned by Open when cfg selects DriverNone.
var ErrDisabled = errors.New("blob storage disabled")

// Open selects a Store implementation from cfg. An empty driver selects fs.
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	driver := Driver(cfg.Driver)
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		store, err := fs.New(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverS3:
		store, err := s3.New(ctx, s3.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return memory.New(), nil
	case DriverNone:
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewMockS3ForTests exposes the in-memory S3 transport for cross-package tests.
func NewMockS3ForTests() Store { return s3.NewMockForTests() }
