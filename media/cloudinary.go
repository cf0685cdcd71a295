// Package media uploads chat images to the media host and returns durable URLs.
package media

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrNotConfigured = errors.New("media host not configured")

type Upload struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

type Uploader interface {
	UploadImage(ctx context.Context, owner primitive.ObjectID, file io.Reader) (Upload, error)
}

type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinary connects using a cloudinary:// URL. An empty URL yields an
// uploader that always fails with ErrNotConfigured.
func NewCloudinary(url, folder string) (*Cloudinary, error) {
	if url == "" {
		return &Cloudinary{folder: folder}, nil
	}
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, err
	}
	return &Cloudinary{cld: cld, folder: folder}, nil
}

func (c *Cloudinary) UploadImage(ctx context.Context, owner primitive.ObjectID, file io.Reader) (Upload, error) {
	if c.cld == nil {
		return Upload{}, ErrNotConfigured
	}
	res, err := c.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:         c.folder,
		PublicID:       owner.Hex() + "_" + time.Now().Format("20060102150405"),
		Transformation: "c_limit,w_800,h_800,q_auto",
	})
	if err != nil {
		return Upload{}, err
	}
	if res.Error.Message != "" {
		return Upload{}, errors.New(res.Error.Message)
	}
	return Upload{URL: res.SecureURL, PublicID: res.PublicID, Width: res.Width, Height: res.Height}, nil
}
