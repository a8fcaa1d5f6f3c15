package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// QRCode serves a PNG QR code linking to a path on the configured site.
func (s *Server) QRCode(c *gin.Context) {
	image, err := s.qrGen.PNG(c.Request.Context(), c.Param("path"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", image)
}
