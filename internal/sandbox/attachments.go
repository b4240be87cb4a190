package sandbox

import (
	"net/http"
	"path"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/mondo/internal/mondo"
)

// uploadAttachment hands out an upload slot. The file itself goes to the
// returned upload_url, never through this endpoint.
func (s *Server) uploadAttachment(c *gin.Context) {
	fileName := path.Base(c.PostForm("file_name"))
	fileType := c.PostForm("file_type")
	if fileName == "." || fileName == "/" || fileType == "" {
		apiError(c, http.StatusBadRequest, "bad_request.missing_param", "file_name and file_type are required")
		return
	}

	key := newID("file") + "/" + fileName
	slot, err := s.presigner.PresignPut(c.Request.Context(), key, fileType)
	if err != nil {
		s.logger.Error(c.Request.Context(), "presign upload failed", "error", err)
		apiError(c, http.StatusInternalServerError, "internal_error", "could not create upload slot")
		return
	}
	c.JSON(http.StatusOK, gin.H{"file_url": slot.FileURL, "upload_url": slot.UploadURL})
}

func (s *Server) registerAttachment(c *gin.Context) {
	externalID := c.PostForm("external_id")
	fileURL := c.PostForm("file_url")
	fileType := c.PostForm("file_type")
	if externalID == "" || fileURL == "" || fileType == "" {
		apiError(c, http.StatusBadRequest, "bad_request.missing_param", "external_id, file_url and file_type are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[externalID]
	if !ok {
		apiError(c, http.StatusNotFound, "not_found.transaction", "transaction not found")
		return
	}

	a := mondo.Attachment{
		ID:         newID("attach"),
		UserID:     s.userID,
		ExternalID: externalID,
		FileURL:    fileURL,
		FileType:   fileType,
		Created:    s.now().UTC(),
	}
	s.attachments[a.ID] = a
	tx.Attachments = append(tx.Attachments, a)
	c.JSON(http.StatusOK, gin.H{"attachment": a})
}

func (s *Server) deregisterAttachment(c *gin.Context) {
	id := c.PostForm("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attachments[id]
	if !ok {
		apiError(c, http.StatusNotFound, "not_found.attachment", "attachment not found")
		return
	}
	delete(s.attachments, id)
	if tx, ok := s.transactions[a.ExternalID]; ok {
		tx.Attachments = slices.DeleteFunc(tx.Attachments, func(x mondo.Attachment) bool { return x.ID == id })
	}
	c.JSON(http.StatusOK, gin.H{})
}
