package auth

import (
	"context"
	"os"
	"path/filepath"

	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/afero"
)

// UploadDirs are created under the provisioner root for every user that
// signs in. The profile directory is per user.
var UploadDirs = []string{
	"uploads/csv",
	"uploads/pdf",
	"uploads/excel",
}

// DirectoryProvisioner creates the upload namespace used by later operations
type DirectoryProvisioner struct {
	fs   afero.Fs
	root string
	perm os.FileMode
}

var _ Provisioner = (*DirectoryProvisioner)(nil)

// NewDirectoryProvisioner creates a provisioner rooted at root on fs. A nil
// fs uses the OS filesystem.
func NewDirectoryProvisioner(fs afero.Fs, root string) *DirectoryProvisioner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &DirectoryProvisioner{
		fs:   fs,
		root: root,
		perm: 0o755,
	}
}

// Paths returns the directories provisioned for userID
func (p *DirectoryProvisioner) Paths(userID string) []string {
	paths := make([]string, 0, len(UploadDirs)+1)
	for _, dir := range UploadDirs {
		paths = append(paths, filepath.Join(p.root, dir))
	}
	return append(paths, filepath.Join(p.root, "uploads", "profile", userID))
}

// Provision creates every missing directory for userID
func (p *DirectoryProvisioner) Provision(ctx context.Context, userID string) error {
	if userID == "" || filepath.Base(userID) != userID {
		return goerrors.New("invalid user id for provisioning", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"user_id": userID})
	}

	for _, dir := range p.Paths(userID) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.fs.MkdirAll(dir, p.perm); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create directory").
				WithMetadata(map[string]any{"dir": dir})
		}
	}

	return nil
}
