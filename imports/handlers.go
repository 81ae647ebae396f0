package imports

import (
	"mime/multipart"
	"net/http"

	"github.com/frete360/frete_backend/utils"
	"github.com/gin-gonic/gin"
)

const maxUploadBytes = 10 << 20

// SpreadsheetHandler serves POST /api/import/:type with the file in the
// "file" form field.
func SpreadsheetHandler(im *Importer) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, err := ParseKind(c.Param("type"))
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fh.Size > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
			return
		}
		defer f.Close()

		res, err := im.ImportSpreadsheet(c.Request.Context(), kind, fh.Filename, f)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// CTeHandler serves POST /api/import/cte; documents come in the "files"
// (or "file") form fields.
func CTeHandler(im *Importer) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form expected"})
			return
		}
		headers := append(append([]*multipart.FileHeader{}, form.File["files"]...), form.File["file"]...)
		if len(headers) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no XML file uploaded"})
			return
		}

		files := make([]XMLFile, 0, len(headers))
		for _, fh := range headers {
			if fh.Size > maxUploadBytes {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fh.Filename + ": file too large"})
				return
			}
			f, err := fh.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fh.Filename + ": cannot read file"})
				return
			}
			defer f.Close()
			files = append(files, XMLFile{Name: fh.Filename, Body: f})
		}

		res, err := im.ImportCTe(c.Request.Context(), files)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func RegisterRoutes(api *gin.RouterGroup, im *Importer) {
	api.POST("/import/cte", CTeHandler(im))
	api.POST("/import/:type", SpreadsheetHandler(im))
}
