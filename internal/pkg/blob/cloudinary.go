package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/Gopher0727/SocialSync/config"
)

// Cloudinary stores media as Cloudinary assets. The object path minus its
// extension becomes the public id, so re-uploading an avatar overwrites it.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinary(cfg config.CloudinaryConfig) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld, folder: cfg.Folder}, nil
}

func (c *Cloudinary) publicID(objectPath string) string {
	id := strings.TrimSuffix(objectPath, path.Ext(objectPath))
	if c.folder == "" {
		return id
	}
	return c.folder + "/" + id
}

func resourceType(contentType string) string {
	if strings.HasPrefix(contentType, "video/") {
		return "video"
	}
	return "image"
}

func (c *Cloudinary) Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	p, err := cleanPath(objectPath)
	if err != nil {
		return "", err
	}
	overwrite := true
	res, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     c.publicID(p),
		Overwrite:    &overwrite,
		ResourceType: resourceType(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", p, err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("upload %s: %s", p, res.Error.Message)
	}
	return res.SecureURL, nil
}

func (c *Cloudinary) Delete(ctx context.Context, objectPath string) error {
	p, err := cleanPath(objectPath)
	if err != nil {
		return err
	}
	rt := "image"
	switch strings.ToLower(path.Ext(p)) {
	case ".mp4", ".mov", ".webm":
		rt = "video"
	}
	_, err = c.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     c.publicID(p),
		ResourceType: rt,
	})
	if err != nil {
		return fmt.Errorf("destroy %s: %w", p, err)
	}
	return nil
}
