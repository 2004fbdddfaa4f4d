package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gradportrait/internal/imagecodec"
	"gradportrait/internal/imagegen"
	"gradportrait/internal/repository"
	"gradportrait/internal/service"
	"gradportrait/internal/storage"
)

const (
	msgUserNotFound    = "Usuario no encontrado"
	msgMissingUpload   = "Usuario no tiene foto y no se proporcionó imagen para generar una nueva"
	msgStoredImage     = "Error al procesar la imagen almacenada"
	msgImageProcessing = "Error al procesar la imagen"
	msgDuplicateUser   = "Ya existe un usuario con la cédula proporcionada"
	msgProviderTimeout = "El servicio de generación de imágenes no respondió a tiempo"
	msgProvider        = "Error al generar la imagen"
	msgInternal        = "Error interno del servidor"
)

// writeError maps service errors to status codes. Every body carries
// success=false and an error message.
func (h HandlerSet) writeError(c *gin.Context, err error) {
	var decodeErr *imagecodec.ImageDecodeError

	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": msgUserNotFound})
	case errors.Is(err, service.ErrMissingUpload):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msgMissingUpload})
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, storage.ErrUnsupportedType),
		errors.Is(err, storage.ErrUploadTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, repository.ErrDuplicateUser):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": msgDuplicateUser})
	case errors.As(err, &decodeErr):
		h.log.Error().Err(err).Str("kind", string(decodeErr.Shape.Kind)).Msg("image payload decode failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   msgStoredImage,
			"details": decodeErr.Shape,
		})
	case errors.Is(err, imagegen.ErrTimeout):
		h.log.Warn().Err(err).Msg("image provider timed out")
		c.JSON(http.StatusGatewayTimeout, gin.H{"success": false, "error": msgProviderTimeout, "retryable": true})
	case errors.Is(err, imagegen.ErrProvider):
		// upstream failure; reported to clients as a plain 500
		h.log.Error().Err(err).Int("upstream_status", http.StatusBadGateway).Msg("image provider failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": msgProvider})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": msgInternal})
	}
}
