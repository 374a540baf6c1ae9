package model

import (
	"context"
	"fmt"
	"os"
)

// Payload gives read access to the bytes of an image. How the bytes were
// acquired (upload, disk, clipboard) is not the model's concern.
type Payload interface {
	Bytes(ctx context.Context) ([]byte, error)
}

type BytesPayload []byte

func (b BytesPayload) Bytes(_ context.Context) ([]byte, error) {
	return b, nil
}

// FilePayload reads the image from disk when the bytes are requested.
type FilePayload string

func (p FilePayload) Bytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(string(p))
	if err != nil {
		return nil, fmt.Errorf("error reading image %s: %w", string(p), err)
	}
	return data, nil
}

type Image struct {
	FileName string
	Payload  Payload

	// Preview is a display reference for the attached binary. It is set only
	// while Payload is set.
	Preview string
}
