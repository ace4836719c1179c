// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSDocumentStore stores diagram documents in a Google Cloud Storage
// bucket. Used when analyses must survive the loss of the local disk,
// or when a separate reviewer toolchain needs the original uploads.
type GCSDocumentStore struct {
	client *gcs.Client
	bucket string
	prefix string
}

var _ DocumentStore = (*GCSDocumentStore)(nil)

// NewGCSDocumentStore creates a document store writing to bucket under
// prefix. If saKeyPath names an existing service account key file it
// is used for authentication; otherwise Application Default
// Credentials apply.
func NewGCSDocumentStore(ctx context.Context, bucket, prefix, saKeyPath string) (*GCSDocumentStore, error) {
	if bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	var opts []option.ClientOption
	if saKeyPath != "" {
		if _, err := os.Stat(saKeyPath); err == nil {
			opts = append(opts, option.WithCredentialsFile(saKeyPath))
		} else {
			slog.Warn("service account key not found, using default credentials",
				slog.String("path", saKeyPath))
		}
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}

	return &GCSDocumentStore{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (s *GCSDocumentStore) objectName(analysisID string) string {
	if s.prefix == "" {
		return analysisID + ".xml"
	}
	return s.prefix + "/" + analysisID + ".xml"
}

func (s *GCSDocumentStore) Put(ctx context.Context, analysisID string, data []byte) error {
	if len(data) == 0 {
		return errors.New("document is empty")
	}

	obj := s.client.Bucket(s.bucket).Object(s.objectName(analysisID))
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/xml"
	writer.CacheControl = "no-store"

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		writer.Close()
		return fmt.Errorf("write document to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize document upload: %w", err)
	}
	return nil
}

func (s *GCSDocumentStore) Get(ctx context.Context, analysisID string) ([]byte, error) {
	obj := s.client.Bucket(s.bucket).Object(s.objectName(analysisID))
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: document for %s", ErrNotFound, analysisID)
		}
		return nil, fmt.Errorf("open document from GCS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read document from GCS: %w", err)
	}
	return data, nil
}

func (s *GCSDocumentStore) Delete(ctx context.Context, analysisID string) error {
	obj := s.client.Bucket(s.bucket).Object(s.objectName(analysisID))
	if err := obj.Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("delete document from GCS: %w", err)
	}
	return nil
}

// Close releases the underlying GCS client.
func (s *GCSDocumentStore) Close() error {
	return s.client.Close()
}
