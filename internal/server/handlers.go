package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnyUserName/boundimg/internal/decoder"
	"github.com/AnyUserName/boundimg/internal/hasher"
	"github.com/AnyUserName/boundimg/internal/profile"
)

// errorResponse is the JSON body of every non-2xx reply.
type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// probeResponse describes a decode without returning pixels.
type probeResponse struct {
	EncodedBytes      int    `json:"encoded_bytes"`
	SizeLimit         int64  `json:"size_limit"`
	InitialSampleSize int    `json:"initial_sample_size"`
	SampleSize        int    `json:"sample_size"`
	Attempts          int    `json:"attempts"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
	Footprint         int64  `json:"footprint"`
	LimitSatisfied    bool   `json:"limit_satisfied"`
	PixelHash         string `json:"pixel_hash"`
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: code, Message: msg, Timestamp: time.Now()})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "running",
		"compression_ratio": s.decoder.CompressionRatio(),
		"memory_class_mb":   s.config.Budget.Effective(),
		"max_upload_bytes":  s.config.Server.MaxUploadBytes,
		"formats":           s.registry.Available(),
		"profiles":          profile.Names(),
		"timestamp":         time.Now(),
	})
}

// decodeRequest reads the body and resolves the size limit from the
// "limit" or "profile" query parameter. It aborts c on failure.
func (s *Server) decodeRequest(c *gin.Context) (*decoder.Raster, []byte, int64, bool) {
	var limit int64
	switch {
	case c.Query("limit") != "":
		n, err := strconv.ParseInt(c.Query("limit"), 10, 64)
		if err != nil || n < 0 {
			abort(c, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return nil, nil, 0, false
		}
		limit = n
	case c.Query("profile") != "":
		prof, err := profile.Get(c.Query("profile"))
		if err != nil {
			abort(c, http.StatusBadRequest, "unknown_profile", err.Error())
			return nil, nil, 0, false
		}
		limit = prof.SizeLimit(s.config.Budget)
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.Server.MaxUploadBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			abort(c, http.StatusRequestEntityTooLarge, "too_large", err.Error())
		} else {
			abort(c, http.StatusBadRequest, "read_failed", err.Error())
		}
		return nil, nil, 0, false
	}
	if len(body) == 0 {
		abort(c, http.StatusBadRequest, "empty_body", "request body must contain an encoded image")
		return nil, nil, 0, false
	}

	r, err := s.decoder.Decode(decoder.Request{Source: body, SizeLimit: limit})
	switch {
	case err == nil:
		return r, body, limit, true
	case decoder.IsFormat(err):
		abort(c, http.StatusUnsupportedMediaType, "invalid_image", err.Error())
	case decoder.IsExhausted(err):
		abort(c, http.StatusServiceUnavailable, "resource_exhausted", err.Error())
	default:
		abort(c, http.StatusInternalServerError, "decode_failed", err.Error())
	}
	return nil, nil, 0, false
}

// handleDecode returns the bounded raster re-encoded in the requested
// format, with the decode decisions in X- headers.
func (s *Server) handleDecode(c *gin.Context) {
	format := c.DefaultQuery("format", s.config.Server.DefaultFormat)
	enc := s.registry.Get(format)
	if enc == nil {
		abort(c, http.StatusBadRequest, "unsupported_format", "no encoder for format "+format)
		return
	}
	quality := s.config.Server.Quality
	if q := c.Query("quality"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 100 {
			abort(c, http.StatusBadRequest, "invalid_quality", "quality must be 1-100")
			return
		}
		quality = n
	}

	r, _, _, ok := s.decodeRequest(c)
	if !ok {
		return
	}

	out, err := enc.Encode(r.Image, quality)
	if err != nil {
		abort(c, http.StatusInternalServerError, "encode_failed", err.Error())
		return
	}

	c.Header("X-Sample-Size", strconv.Itoa(r.SampleSize))
	c.Header("X-Attempts", strconv.Itoa(r.Attempts))
	c.Header("X-Width", strconv.Itoa(r.Width()))
	c.Header("X-Height", strconv.Itoa(r.Height()))
	c.Header("X-Footprint", strconv.FormatInt(r.Footprint(), 10))
	c.Header("X-Limit-Satisfied", strconv.FormatBool(r.LimitSatisfied))
	c.Data(http.StatusOK, enc.ContentType(), out)
}

// handleProbe runs the decode and reports the outcome as JSON.
func (s *Server) handleProbe(c *gin.Context) {
	r, body, limit, ok := s.decodeRequest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, probeResponse{
		EncodedBytes:      len(body),
		SizeLimit:         limit,
		InitialSampleSize: decoder.InitialSampleSize(len(body), limit, s.decoder.CompressionRatio()),
		SampleSize:        r.SampleSize,
		Attempts:          r.Attempts,
		Width:             r.Width(),
		Height:            r.Height(),
		Footprint:         r.Footprint(),
		LimitSatisfied:    r.LimitSatisfied,
		PixelHash:         hasher.RasterHash(r.Image, 16),
	})
}
