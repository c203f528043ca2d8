package blob

import (
	"context"
	"fmt"
)

// Options selects and configures a blob backend.
//
//	Driver: fs|s3|memory (default fs)
//	FSRoot: directory root when driver=fs (default ./traits)
//	S3:     bucket settings when driver=s3
type Options struct {
	Driver string
	FSRoot string
	S3     S3Config
}

// Open selects a blob.Store implementation from opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		fsStore, err := NewFilesystem(opts.FSRoot)
		if err != nil {
			return nil, err
		}
		return fsStore, nil
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
