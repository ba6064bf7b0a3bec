// Package blobstore persists generated visualizations to Azure Blob storage
// so the chat surface can render them from a stable URL.
package blobstore

import (
	"context"
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/rs/zerolog"

	"geniebot/internal/domain"
)

// Sink stores rendered images and addresses them by name.
type Sink interface {
	// Upload copies a local scratch file into the remote container under
	// the same name, tagged as an image.
	Upload(ctx context.Context, localPath, name string) error
	// Delete removes a previously uploaded object.
	Delete(ctx context.Context, name string) error
	// URL returns the public address of an uploaded object.
	URL(name string) string
}

var imageContentType = "image/png"

// AzureSink is the Azure Blob implementation of Sink.
type AzureSink struct {
	client     *azblob.Client
	accountURL string
	container  string
	log        zerolog.Logger
}

// NewAzureSink creates a sink for the given storage account and container.
func NewAzureSink(accountName, container string, cred azcore.TokenCredential, logger zerolog.Logger) (*AzureSink, error) {
	accountURL := fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	client, err := azblob.NewClient(accountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}
	return &AzureSink{
		client:     client,
		accountURL: accountURL,
		container:  container,
		log:        logger,
	}, nil
}

// Upload implements Sink. Failures propagate: a turn that produced an image
// but cannot publish it is a failed turn.
func (s *AzureSink) Upload(ctx context.Context, localPath, name string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return &domain.ServiceError{Service: "blobstore", Err: fmt.Errorf("opening %s: %w", localPath, err)}
	}
	defer f.Close()

	_, err = s.client.UploadFile(ctx, s.container, name, f, &azblob.UploadFileOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &imageContentType},
	})
	if err != nil {
		return &domain.ServiceError{Service: "blobstore", Err: fmt.Errorf("uploading %s: %w", name, err)}
	}
	s.log.Info().Str("blob", name).Str("container", s.container).Msg("visualization uploaded")
	return nil
}

// Delete implements Sink. Unused by the happy path; kept for cleanup policy.
func (s *AzureSink) Delete(ctx context.Context, name string) error {
	if _, err := s.client.DeleteBlob(ctx, s.container, name, nil); err != nil {
		s.log.Error().Err(err).Str("blob", name).Msg("blob delete failed")
		return &domain.ServiceError{Service: "blobstore", Err: fmt.Errorf("deleting %s: %w", name, err)}
	}
	return nil
}

// URL implements Sink.
func (s *AzureSink) URL(name string) string {
	return fmt.Sprintf("%s/%s/%s", s.accountURL, s.container, name)
}
