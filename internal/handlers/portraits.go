package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"gradportrait/internal/models"
	"gradportrait/internal/service"
)

type uploadForm struct {
	Name   string                `form:"name" binding:"required"`
	Gender string                `form:"gender"`
	Career string                `form:"career" binding:"required"`
	Cedula string                `form:"cedula"`
	Image  *multipart.FileHeader `form:"image" binding:"required"`
}

type debugImageResponse struct {
	Success      bool           `json:"success"`
	HasImage     bool           `json:"hasImage"`
	User         models.Profile `json:"user"`
	ImageType    string         `json:"imageType,omitempty"`
	Field        string         `json:"field,omitempty"`
	IsBuffer     bool           `json:"isBuffer"`
	IsArray      bool           `json:"isArray"`
	Length       int            `json:"length"`
	ArrayPreview []int          `json:"arrayPreview,omitempty"`
	BufferPrev   string         `json:"bufferPreview,omitempty"`
	Format       string         `json:"format,omitempty"`
	Width        int            `json:"width,omitempty"`
	Height       int            `json:"height,omitempty"`
	DecodeError  string         `json:"decodeError,omitempty"`
}

// Upload creates a user and always generates their portrait.
func (h HandlerSet) Upload(c *gin.Context) {
	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "name, career and image are required"})
		return
	}

	photo, spooledPath, err := h.readUpload(form.Image)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer h.spool.Discard(spooledPath)

	result, err := h.portraits.Onboard(c.Request.Context(), service.OnboardInput{
		Name:   form.Name,
		Gender: form.Gender,
		Career: form.Career,
		Cedula: form.Cedula,
		Photo:  *photo,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"imagePath": result.ImagePath,
		"user":      result.User.Profile(),
	})
}

// Photo returns the stored portrait for id or generates one from the
// optional uploaded image. The file is only spooled and validated once the
// record turns out to need a portrait.
func (h HandlerSet) Photo(c *gin.Context) {
	id := c.Param("id")

	var load service.UploadLoader
	var spooledPath string
	defer func() { h.spool.Discard(spooledPath) }()

	header, err := c.FormFile("image")
	switch {
	case err == nil:
		load = func() (*service.Upload, error) {
			photo, path, err := h.readUpload(header)
			spooledPath = path
			return photo, err
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid multipart body"})
		return
	}

	result, err := h.portraits.Resolve(c.Request.Context(), id, load)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if !result.Generated {
		c.JSON(http.StatusOK, gin.H{
			"success":          true,
			"hasExistingPhoto": true,
			"user":             result.User.Profile(),
			"hasPhoto":         true,
			"image":            result.Image,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"hasExistingPhoto": false,
		"generated":        true,
		"imagePath":        result.ImagePath,
		"user":             result.User.Profile(),
		"image":            result.Image,
	})
}

func (h HandlerSet) CheckPhoto(c *gin.Context) {
	result, err := h.portraits.Check(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := gin.H{
		"success":  true,
		"user":     result.User.Profile(),
		"hasPhoto": result.HasPhoto,
	}
	if result.Image != "" {
		resp["image"] = result.Image
	}
	if result.ImageError != "" {
		resp["imageError"] = msgImageProcessing
	}
	c.JSON(http.StatusOK, resp)
}

func (h HandlerSet) DebugImage(c *gin.Context) {
	diag, err := h.portraits.Inspect(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := debugImageResponse{
		Success:  true,
		HasImage: diag.HasImage,
		User:     models.Profile{ID: diag.User.ID, Name: diag.User.Name},
	}
	if diag.HasImage {
		resp.ImageType = string(diag.Shape.Kind)
		resp.Field = diag.Shape.Field
		resp.IsBuffer = diag.Shape.IsBuffer
		resp.IsArray = diag.Shape.IsArray
		resp.Length = diag.Shape.Length
		resp.ArrayPreview = diag.Shape.ArrayPreview
		resp.BufferPrev = diag.Shape.BufferPreview
		resp.Format = diag.Format
		resp.Width = diag.Width
		resp.Height = diag.Height
		resp.DecodeError = diag.DecodeError
	}
	c.JSON(http.StatusOK, resp)
}

// readUpload spools the file and reads it back. The caller discards the
// returned path once the response is written.
func (h HandlerSet) readUpload(header *multipart.FileHeader) (*service.Upload, string, error) {
	spooled, err := h.spool.Save(header)
	if err != nil {
		return nil, "", err
	}

	data, err := spooled.ReadAll()
	if err != nil {
		h.spool.Discard(spooled.Path)
		return nil, "", err
	}
	return &service.Upload{
		Filename: spooled.Filename,
		MIME:     spooled.MIME,
		Data:     data,
	}, spooled.Path, nil
}
