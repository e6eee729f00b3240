// Package schemastore keeps tenant schema documents and their side files in
// object storage under <prefix>/<tenant>/<filename>.
package schemastore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"schema-host/internal/common/aws"
)

const (
	TenantPropertiesFile    = "tenant.properties"
	EndpointsPropertiesFile = "endpoints.properties"
)

var ErrInvalidFilename = errors.New("INVALID_FILENAME")

// ObjectStore is the object-storage capability the store needs.
type ObjectStore interface {
	ListObjects(ctx context.Context, bucket, prefix string) ([]aws.ObjectInfo, error)
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
	DeleteObject(ctx context.Context, bucket, key string) error
}

type Store struct {
	objects ObjectStore
	bucket  string
	prefix  string
}

func New(objects ObjectStore, bucket, prefix string) *Store {
	return &Store{
		objects: objects,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
	}
}

func (s *Store) tenantPrefix(tenant string) string {
	if s.prefix == "" {
		return tenant + "/"
	}
	return s.prefix + "/" + tenant + "/"
}

func (s *Store) key(tenant, filename string) (string, error) {
	if filename == "" || strings.ContainsAny(filename, "/\\") || filename == "." || filename == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return s.tenantPrefix(tenant) + filename, nil
}

// List returns the filenames stored for tenant, side files included.
func (s *Store) List(ctx context.Context, tenant string) ([]string, error) {
	objs, err := s.objects.ListObjects(ctx, s.bucket, s.tenantPrefix(tenant))
	if err != nil {
		return nil, err
	}
	prefix := s.tenantPrefix(tenant)
	names := make([]string, 0, len(objs))
	for _, obj := range objs {
		// nested keys are not addressable by filename
		name := strings.TrimPrefix(obj.Key, prefix)
		if name == "" || name == obj.Key || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *Store) Fetch(ctx context.Context, tenant, filename string) ([]byte, error) {
	key, err := s.key(tenant, filename)
	if err != nil {
		return nil, err
	}
	return s.objects.GetObject(ctx, s.bucket, key)
}

func (s *Store) Put(ctx context.Context, tenant, filename string, body []byte) error {
	key, err := s.key(tenant, filename)
	if err != nil {
		return err
	}
	contentType := "application/json"
	if strings.HasSuffix(filename, ".properties") {
		contentType = "text/plain"
	}
	return s.objects.PutObject(ctx, s.bucket, key, body, contentType)
}

func (s *Store) Delete(ctx context.Context, tenant, filename string) error {
	key, err := s.key(tenant, filename)
	if err != nil {
		return err
	}
	return s.objects.DeleteObject(ctx, s.bucket, key)
}

// DeleteAll removes every object of tenant and returns how many were deleted.
func (s *Store) DeleteAll(ctx context.Context, tenant string) (int, error) {
	objs, err := s.objects.ListObjects(ctx, s.bucket, s.tenantPrefix(tenant))
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, obj := range objs {
		if err := s.objects.DeleteObject(ctx, s.bucket, obj.Key); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// Usage returns the total bytes stored for tenant.
func (s *Store) Usage(ctx context.Context, tenant string) (int64, error) {
	objs, err := s.objects.ListObjects(ctx, s.bucket, s.tenantPrefix(tenant))
	if err != nil {
		return 0, err
	}
	var total int64
	for _, obj := range objs {
		total += obj.Size
	}
	return total, nil
}
