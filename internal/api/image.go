package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"

	"github.com/franckalain/leafmetric/internal/models"
)

// UploadImage sends image bytes as the multipart field "image"
func (c *Client) UploadImage(ctx context.Context, token string, image io.Reader) (*models.UploadedImage, error) {
	const op = "upload_image"
	if err := requireToken(op, token); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="image.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish upload body: %w", err)
	}

	data, _, err := c.send(ctx, call{
		op:          op,
		fallback:    "Image upload failed",
		method:      http.MethodPost,
		path:        "/api/image",
		auth:        true,
		token:       token,
		body:        &buf,
		contentType: mw.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}

	var uploaded models.UploadedImage
	if err := decodeField(op, data, "image", &uploaded); err != nil {
		return nil, err
	}
	return &uploaded, nil
}

// UploadImageFile uploads the image stored at path
func (c *Client) UploadImageFile(ctx context.Context, token, path string) (*models.UploadedImage, error) {
	if err := requireToken("upload_image", token); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return c.UploadImage(ctx, token, f)
}
