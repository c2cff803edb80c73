// Package api provides the REST API server for td3pattern
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/james-see/td3pattern/pkg/converter"
	"github.com/james-see/td3pattern/pkg/converter/devices"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title TD3Pattern API
// @version 1.0
// @description API for converting Behringer TD-3 patterns between SysEx, text and MIDI
// @host localhost:8080
// @BasePath /api/v1

// maxUpload bounds the size of an uploaded pattern file
const maxUpload = 1 << 20

// StartServer starts the API server on the specified port
func StartServer(port int) error {
	return NewRouter().Run(fmt.Sprintf(":%d", port))
}

// NewRouter builds the gin engine with all routes registered
func NewRouter() *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.POST("/convert/syx2txt", handleSyxToText)
		v1.POST("/convert/txt2syx", handleTextToSyx)
		v1.POST("/convert/syx2midi", handleSyxToMIDI)
		v1.POST("/convert/txt2midi", handleTextToMIDI)
		v1.POST("/convert/midi2txt", handleMIDIToText)
		v1.POST("/convert/midi2syx", handleMIDIToSyx)
		v1.POST("/inspect", handleInspect)
		v1.GET("/formats", listFormats)
		v1.GET("/devices", listDevices)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "td3pattern",
	})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns the supported file formats and conversion paths
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats":     []string{string(converter.FormatText), string(converter.FormatSyx), string(converter.FormatMIDI)},
		"conversions": converter.GetSupportedConversions(),
	})
}

// listDevices godoc
// @Summary List supported devices
// @Description Returns a list of supported Behringer devices
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]map[string]string
// @Router /api/v1/devices [get]
func listDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"devices": []map[string]string{
			{"id": "td3", "name": devices.NewTD3().Name(), "description": "TB-303 clone, 4 groups of 8A/8B patterns"},
		},
	})
}

// handleSyxToText godoc
// @Summary Convert .syx to text
// @Description Upload a pattern dump and receive the editable text form
// @Tags convert
// @Accept multipart/form-data
// @Produce text/plain
// @Param file formData file true ".syx file to convert"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/syx2txt [post]
func handleSyxToText(c *gin.Context) {
	handleConversion(c, converter.FormatSyx, converter.FormatText)
}

// handleTextToSyx godoc
// @Summary Convert text to .syx
// @Description Upload a text pattern and receive a pattern dump addressed to group/pattern
// @Tags convert
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true "text pattern to convert"
// @Param group query string false "Target group 1-4 (default: 1)"
// @Param pattern query string false "Target pattern 1A-8B (default: 1A)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/txt2syx [post]
func handleTextToSyx(c *gin.Context) {
	handleConversion(c, converter.FormatText, converter.FormatSyx)
}

// handleSyxToMIDI godoc
// @Summary Convert .syx to MIDI
// @Description Upload a pattern dump and receive a one bar MIDI file
// @Tags convert
// @Accept multipart/form-data
// @Produce audio/midi
// @Param file formData file true ".syx file to convert"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/syx2midi [post]
func handleSyxToMIDI(c *gin.Context) {
	handleConversion(c, converter.FormatSyx, converter.FormatMIDI)
}

// handleTextToMIDI godoc
// @Summary Convert text to MIDI
// @Description Upload a text pattern and receive a one bar MIDI file
// @Tags convert
// @Accept multipart/form-data
// @Produce audio/midi
// @Param file formData file true "text pattern to convert"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/txt2midi [post]
func handleTextToMIDI(c *gin.Context) {
	handleConversion(c, converter.FormatText, converter.FormatMIDI)
}

// handleMIDIToText godoc
// @Summary Convert MIDI to text
// @Description Upload a MIDI file and receive the first bar as a text pattern
// @Tags convert
// @Accept multipart/form-data
// @Produce text/plain
// @Param file formData file true "MIDI file to convert"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/midi2txt [post]
func handleMIDIToText(c *gin.Context) {
	handleConversion(c, converter.FormatMIDI, converter.FormatText)
}

// handleMIDIToSyx godoc
// @Summary Convert MIDI to .syx
// @Description Upload a MIDI file and receive a pattern dump addressed to group/pattern
// @Tags convert
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true "MIDI file to convert"
// @Param group query string false "Target group 1-4 (default: 1)"
// @Param pattern query string false "Target pattern 1A-8B (default: 1A)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/midi2syx [post]
func handleMIDIToSyx(c *gin.Context) {
	handleConversion(c, converter.FormatMIDI, converter.FormatSyx)
}

// handleInspect godoc
// @Summary Decode a pattern to JSON
// @Description Upload a .syx, text or MIDI pattern and receive its steps as JSON
// @Tags inspect
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "pattern file"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/v1/inspect [post]
func handleInspect(c *gin.Context) {
	data, filename, ok := readUpload(c)
	if !ok {
		return
	}

	format := converter.DetectFormat(filename)
	if format == converter.FormatUnknown {
		format = converter.DetectFormatFromContent(data)
	}
	if format == converter.FormatUnknown {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot determine file format"})
		return
	}

	pattern, err := converter.New(devices.NewTD3()).Load(data, format)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"format":  format,
		"pattern": pattern,
	})
}

func handleConversion(c *gin.Context, from, to converter.Format) {
	conv := converter.New(devices.NewTD3())

	if to == converter.FormatSyx {
		slot, err := converter.ParseSlot(c.DefaultQuery("group", "1"), c.DefaultQuery("pattern", "1A"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		conv.SetSlot(slot)
	}

	data, filename, ok := readUpload(c)
	if !ok {
		return
	}

	result, err := conv.Convert(data, from, to)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	// Generate output filename
	outputName := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if outputName == "" || outputName == "." {
		outputName = "converted"
	}
	outputName += to.Extension()

	// Set content type and headers
	var contentType string
	switch to {
	case converter.FormatMIDI:
		contentType = "audio/midi"
	case converter.FormatText:
		contentType = "text/plain; charset=utf-8"
	default:
		contentType = "application/octet-stream"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName))
	c.Data(http.StatusOK, contentType, result)
}

func readUpload(c *gin.Context) ([]byte, string, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxUpload+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return nil, "", false
	}
	if len(data) > maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return nil, "", false
	}
	return data, header.Filename, true
}

// errorStatus maps decode failures to 400, other unusable input to 422
func errorStatus(err error) int {
	switch {
	case errors.Is(err, converter.ErrTextGrammar),
		errors.Is(err, converter.ErrPayloadSize),
		errors.Is(err, converter.ErrMalformedField):
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}
