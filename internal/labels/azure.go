package labels

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/fieldmark/fieldmark/internal/config"
	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

// AzureStore archives label PNGs in an Azure Blob Storage container.
// Credentials are resolved via DefaultAzureCredential (env vars, managed
// identity, Azure CLI).
type AzureStore struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewAzureStore creates an AzureStore for the configured container.
func NewAzureStore(cfg *config.LabelsConfig) (*AzureStore, error) {
	if cfg == nil || cfg.AzureContainer == "" || cfg.AzureAccountURL == "" {
		return nil, fmt.Errorf("azure container and account URL are required")
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating azure credential: %w", err)
	}
	client, err := azblob.NewClient(cfg.AzureAccountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating azure blob client: %w", err)
	}

	return &AzureStore{
		client:    client,
		container: cfg.AzureContainer,
		prefix:    cfg.AzurePrefix,
	}, nil
}

func (s *AzureStore) Put(ctx context.Context, code string, png []byte) error {
	_, err := s.client.UploadBuffer(ctx, s.container, objectKey(s.prefix, code), png, nil)
	if err != nil {
		return fmt.Errorf("uploading label blob: %w", err)
	}
	return nil
}

func (s *AzureStore) Get(ctx context.Context, code string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, objectKey(s.prefix, code), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, fmerr.ErrLabelNotFound.WithMessage("no label archived for code %q", code)
		}
		return nil, fmt.Errorf("downloading label blob: %w", err)
	}
	defer resp.Body.Close()
	png, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading label blob: %w", err)
	}
	return png, nil
}

func (s *AzureStore) Exists(ctx context.Context, code string) (bool, error) {
	_, err := s.client.ServiceClient().
		NewContainerClient(s.container).
		NewBlobClient(objectKey(s.prefix, code)).
		GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking label blob: %w", err)
	}
	return true, nil
}

func (s *AzureStore) Delete(ctx context.Context, code string) error {
	_, err := s.client.DeleteBlob(ctx, s.container, objectKey(s.prefix, code), nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("deleting label blob: %w", err)
	}
	return nil
}

func (s *AzureStore) List(ctx context.Context) ([]string, error) {
	listPrefix := ""
	if s.prefix != "" {
		listPrefix = s.prefix + "/"
	}
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{
		Prefix: &listPrefix,
	})

	var out []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing label blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			name := strings.TrimPrefix(*item.Name, listPrefix)
			if strings.HasSuffix(name, ".png") {
				out = append(out, strings.TrimSuffix(name, ".png"))
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *AzureStore) Close() error { return nil }
