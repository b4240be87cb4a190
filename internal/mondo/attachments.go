package mondo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// UploadAttachment uploads a local file in two steps: an upload slot is
// requested from the API and the bytes are then PUT to the returned URL.
// The file type is guessed from the extension, falling back to sniffing the
// content.
func (c *Client) UploadAttachment(ctx context.Context, path string) (*UploadedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat attachment: %w", err)
	}

	br := bufio.NewReader(f)
	fileType := mime.TypeByExtension(filepath.Ext(path))
	if fileType == "" {
		head, _ := br.Peek(512)
		fileType = http.DetectContentType(head)
	}

	return c.uploadAttachment(ctx, filepath.Base(path), fileType, br, info.Size())
}

// UploadAttachmentReader is UploadAttachment for content that is not on
// disk. r is read to the end.
func (c *Client) UploadAttachmentReader(ctx context.Context, fileName, fileType string, r io.Reader) (*UploadedFile, error) {
	return c.uploadAttachment(ctx, fileName, fileType, r, -1)
}

func (c *Client) uploadAttachment(ctx context.Context, fileName, fileType string, r io.Reader, size int64) (*UploadedFile, error) {
	form := url.Values{
		"file_name": {fileName},
		"file_type": {fileType},
	}
	var slot struct {
		FileURL   string `json:"file_url"`
		UploadURL string `json:"upload_url"`
	}
	if err := c.post(ctx, "attachment/upload", form, &slot); err != nil {
		return nil, err
	}
	if slot.UploadURL == "" {
		return nil, missingKey("attachment upload", "upload_url")
	}

	if err := c.put(ctx, slot.UploadURL, fileType, r, size); err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "attachment uploaded", "file_name", fileName, "file_type", fileType)
	return &UploadedFile{FileURL: slot.FileURL, FileType: fileType}, nil
}

// put sends raw bytes to a pre-signed URL. The URL carries its own
// authorization, so no bearer token is attached.
func (c *Client) put(ctx context.Context, rawURL, contentType string, r io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, rawURL, r)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	if size >= 0 {
		req.ContentLength = size
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			Method:     http.MethodPut,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// AttachFile associates an uploaded file with a transaction.
func (c *Client) AttachFile(ctx context.Context, transactionID, fileURL, fileType string) (*Attachment, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("attach file: %w", ErrEmptyID)
	}
	form := url.Values{
		"external_id": {transactionID},
		"file_url":    {fileURL},
		"file_type":   {fileType},
	}
	var out struct {
		Attachment *Attachment `json:"attachment"`
	}
	if err := c.post(ctx, "attachment/register", form, &out); err != nil {
		return nil, err
	}
	if out.Attachment == nil {
		return nil, missingKey("attach file", "attachment")
	}
	return out.Attachment, nil
}

// RemoveAttachment detaches a registered attachment and returns the decoded
// response body.
func (c *Client) RemoveAttachment(ctx context.Context, attachmentID string) (map[string]any, error) {
	if attachmentID == "" {
		return nil, fmt.Errorf("remove attachment: %w", ErrEmptyID)
	}
	out := map[string]any{}
	if err := c.post(ctx, "attachment/deregister", url.Values{"id": {attachmentID}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
