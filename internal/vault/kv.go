package vault

import (
	"context"
	"fmt"
	"strings"

	"github.com/vyrodovalexey/keygate/internal/observability"
)

// KVClient provides KV v2 secrets engine operations.
type KVClient interface {
	// Read reads the data of the secret at mount/data/path.
	Read(ctx context.Context, mount, path string) (map[string]interface{}, error)

	// Write writes data as the secret at mount/data/path.
	Write(ctx context.Context, mount, path string, data map[string]interface{}) error
}

// kvClient implements KVClient.
type kvClient struct {
	client *vaultClient
}

// dataPath returns the KV v2 data path.
func dataPath(mount, path string) (string, error) {
	mount = strings.Trim(mount, "/")
	path = strings.Trim(path, "/")
	if mount == "" || path == "" {
		return "", ErrInvalidPath
	}
	return fmt.Sprintf("%s/data/%s", mount, path), nil
}

// Read reads a secret from KV v2.
func (k *kvClient) Read(ctx context.Context, mount, path string) (map[string]interface{}, error) {
	fullPath, err := dataPath(mount, path)
	if err != nil {
		return nil, NewError("kv_read", path, err)
	}

	secret, err := k.client.api.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return nil, NewError("kv_read", fullPath, err)
	}

	// The API returns a nil secret for 404.
	if secret == nil || secret.Data == nil {
		return nil, NewError("kv_read", fullPath, ErrSecretNotFound)
	}

	// Soft-deleted secrets keep metadata but have data: null.
	dataValue, hasData := secret.Data["data"]
	if !hasData || dataValue == nil {
		return nil, NewError("kv_read", fullPath, ErrSecretNotFound)
	}

	data, ok := dataValue.(map[string]interface{})
	if !ok {
		return nil, NewError("kv_read", fullPath, fmt.Errorf("unexpected data type %T", dataValue))
	}

	k.client.logger.Debug("secret read", observability.String("path", fullPath))

	return data, nil
}

// Write writes a secret to KV v2.
func (k *kvClient) Write(ctx context.Context, mount, path string, data map[string]interface{}) error {
	fullPath, err := dataPath(mount, path)
	if err != nil {
		return NewError("kv_write", path, err)
	}

	wrapped := map[string]interface{}{
		"data": data,
	}

	if _, err := k.client.api.Logical().WriteWithContext(ctx, fullPath, wrapped); err != nil {
		return NewError("kv_write", fullPath, err)
	}

	k.client.logger.Debug("secret written", observability.String("path", fullPath))

	return nil
}
