package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// PurposeFineTune marks an upload as training data.
const PurposeFineTune = "fine-tune"

type File struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	Bytes     int64  `json:"bytes"`
	CreatedAt int64  `json:"created_at"`
	Filename  string `json:"filename"`
	Purpose   string `json:"purpose"`
	Status    string `json:"status,omitempty"`
}

// UploadFile sends the file at path as multipart form data.
func (c *Client) UploadFile(ctx context.Context, path, purpose string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer f.Close()

	return c.Upload(ctx, filepath.Base(path), f, purpose)
}

// Upload sends r under the given filename.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader, purpose string) (File, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	if err := form.WriteField("purpose", purpose); err != nil {
		return File{}, err
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return File{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return File{}, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := form.Close(); err != nil {
		return File{}, err
	}

	resp, err := c.send(ctx, http.MethodPost, c.endpoint("files"), &body, form.FormDataContentType())
	if err != nil {
		return File{}, fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	defer resp.Body.Close()

	var file File
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return File{}, fmt.Errorf("failed to unmarshal response body: %w", err)
	}
	return file, nil
}
