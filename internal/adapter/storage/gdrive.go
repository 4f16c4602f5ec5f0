package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/semmidev/mongovault/internal/config"
	"github.com/semmidev/mongovault/internal/domain"
)

const driveFileFields = "id, name, size, modifiedTime"

// GDriveStorage keeps archives in one Google Drive folder.
type GDriveStorage struct {
	service  *drive.Service
	folderID string
}

// NewGDrive authenticates with a service account credentials file, or with
// an OAuth client secret plus a refresh token from the gdrive-auth flow.
func NewGDrive(ctx context.Context, cfg *config.GDriveConfig) (*GDriveStorage, error) {
	var opt option.ClientOption
	if cfg.CredentialsFile != "" {
		opt = option.WithCredentialsFile(cfg.CredentialsFile)
	} else {
		oauthCfg, err := LoadOAuthConfig(cfg.ClientSecretFile)
		if err != nil {
			return nil, err
		}
		token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
		opt = option.WithTokenSource(oauthCfg.TokenSource(ctx, token))
	}

	service, err := drive.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &GDriveStorage{
		service:  service,
		folderID: cfg.FolderID,
	}, nil
}

// LoadOAuthConfig reads an OAuth client secret JSON file for Drive file
// access.
func LoadOAuthConfig(clientSecretPath string) (*oauth2.Config, error) {
	if clientSecretPath == "" {
		return nil, fmt.Errorf("client secret path cannot be empty")
	}
	b, err := os.ReadFile(clientSecretPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret: %w", err)
	}
	return cfg, nil
}

func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func (g *GDriveStorage) find(ctx context.Context, name string) (*drive.File, error) {
	query := fmt.Sprintf("'%s' in parents and name='%s' and trashed=false", quote(g.folderID), quote(name))

	fileList, err := g.service.Files.List().
		Q(query).
		Fields("files(" + driveFileFields + ")").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to find file: %w", err)
	}
	if len(fileList.Files) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrArchiveNotFound, name)
	}
	return fileList.Files[0], nil
}

// Store replaces the content of an existing archive with the same name, so
// daily names keep one file per day. A failed lookup fails the upload rather
// than risk a second file under the same name.
func (g *GDriveStorage) Store(ctx context.Context, name string, body io.Reader) error {
	existing, err := g.find(ctx, name)
	switch {
	case err == nil:
		_, err = g.service.Files.Update(existing.Id, &drive.File{}).
			Media(body).
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to update gdrive file: %w", err)
		}
		return nil
	case !errors.Is(err, domain.ErrArchiveNotFound):
		return err
	}

	fileMetadata := &drive.File{
		Name:     name,
		Parents:  []string{g.folderID},
		MimeType: "application/gzip",
	}

	_, err = g.service.Files.Create(fileMetadata).
		Media(body).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to upload to gdrive: %w", err)
	}

	return nil
}

func (g *GDriveStorage) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	file, err := g.find(ctx, name)
	if err != nil {
		return nil, err
	}
	resp, err := g.service.Files.Get(file.Id).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download from gdrive: %w", err)
	}
	return resp.Body, nil
}

func (g *GDriveStorage) List(ctx context.Context) ([]domain.Descriptor, error) {
	query := fmt.Sprintf("'%s' in parents and trashed=false and name contains '%s'",
		quote(g.folderID), domain.ArchivePrefix)

	var archives []domain.Descriptor
	err := g.service.Files.List().
		Q(query).
		Fields("nextPageToken, files("+driveFileFields+")").
		Context(ctx).
		Pages(ctx, func(page *drive.FileList) error {
			archives = append(archives, driveDescriptors(page.Files)...)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	sortNewestFirst(archives)
	return archives, nil
}

func driveDescriptors(files []*drive.File) []domain.Descriptor {
	var out []domain.Descriptor
	for _, f := range files {
		if !domain.IsArchiveName(f.Name) {
			continue
		}
		modified, err := time.Parse(time.RFC3339, f.ModifiedTime)
		if err != nil {
			continue
		}
		out = append(out, domain.Descriptor{
			Name:         f.Name,
			Key:          f.Id,
			Size:         f.Size,
			LastModified: modified,
		})
	}
	return out
}

func (g *GDriveStorage) Delete(ctx context.Context, name string) error {
	file, err := g.find(ctx, name)
	if err != nil {
		return err
	}

	if err := g.service.Files.Delete(file.Id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}
