package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"webinar/internal/attendance"
	"webinar/internal/export"
	"webinar/internal/ingest"
)

// User-facing messages.
const (
	msgNoFile          = "لم يتم رفع أي ملف"
	msgMissingSection  = "لم يتم العثور على قسم 'Attendee Details' في الملف"
	msgMissingHint     = "تأكد من أن الملف يحتوي على قسم بعنوان 'Attendee Details'"
	msgTooLargeProcess = "الملف كبير جداً للمعالجة. حاول تقسيمه إلى ملفات أصغر"
	msgTimeout         = "المعالجة استغرقت وقتاً أطول من المتوقع. حاول بملف أصغر أو ببيانات أقل"
	msgStorage         = "خطأ في حفظ البيانات. حاول مرة أخرى"
	msgProcessing      = "خطأ في معالجة الملف"
	msgNotFound        = "السجل غير موجود"
	msgFileNotFound    = "الملف غير موجود"
	msgInvalidData     = "بيانات غير صحيحة"
	msgInvalidStatus   = "قيمة الحالة غير صحيحة"
	msgFetch           = "خطأ في استرجاع البيانات"
	msgUpdate          = "خطأ في تحديث البيانات"
	msgDeleted         = "تم حذف السجل بنجاح"
	msgDelete          = "خطأ في حذف البيانات"
	msgExport          = "خطأ في تصدير البيانات"
	msgStatistics      = "خطأ في استرجاع الإحصائيات"
	msgFileDeleted     = "تم حذف بيانات الملف بنجاح"
)

// multipartSlack covers form boundaries and headers around the file part.
const multipartSlack = 1 << 20

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Handler serves the review API.
type Handler struct {
	attendees *attendance.Service
	ingest    *ingest.Service
	checks    map[string]HealthCheck
	log       *slog.Logger
	// verbose adds raw error text to failed upload responses.
	verbose bool
}

// New builds a handler. checks are reported by Healthz; a failing one makes
// the endpoint return 503.
func New(att *attendance.Service, ing *ingest.Service, checks map[string]HealthCheck, log *slog.Logger, verbose bool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{attendees: att, ingest: ing, checks: checks, log: log, verbose: verbose}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.POST("/upload-csv", h.Upload)

		api.GET("/attendees", h.ListAttendees)
		api.GET("/attendees/:id", h.GetAttendee)
		api.PUT("/attendees/:id", h.UpdateAttendee)
		api.DELETE("/attendees/:id", h.DeleteAttendee)

		api.GET("/export-excel", h.Export)
		api.GET("/statistics", h.Statistics)

		api.GET("/files", h.ListFiles)
		api.GET("/files/:id", h.GetFile)
		api.DELETE("/files/:id", h.DeleteFile)
	}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{"store": h.attendees.Healthy(ctx)}
	ok := body["store"] == true
	for name, check := range h.checks {
		healthy := check(ctx)
		body[name] = healthy
		ok = ok && healthy
	}
	status := http.StatusOK
	body["status"] = "ok"
	if !ok {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

// ---------- Upload ----------

// Upload ingests a multipart report in field "file".
func (h *Handler) Upload(c *gin.Context) {
	limit := h.ingest.MaxBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartSlack)

	header, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.uploadError(c, &ingest.TooLargeError{Size: c.Request.ContentLength, Max: limit})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": msgNoFile})
		return
	}
	if header.Size > limit {
		h.uploadError(c, &ingest.TooLargeError{Size: header.Size, Max: limit})
		return
	}

	f, err := header.Open()
	if err != nil {
		h.uploadError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		h.uploadError(c, fmt.Errorf("read upload: %w", err))
		return
	}

	resp, err := h.ingest.Ingest(c.Request.Context(), header.Filename, data)
	if err != nil {
		h.uploadError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) uploadError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := gin.H{"message": msgProcessing}

	var tooLarge *ingest.TooLargeError
	switch ingest.Classify(err) {
	case ingest.KindTooLarge:
		status = http.StatusRequestEntityTooLarge
		body["message"] = msgTooLargeProcess
		if errors.As(err, &tooLarge) {
			body["message"] = fmt.Sprintf("حجم الملف كبير جداً (%s). الحد الأقصى المسموح هو %s",
				humanize.IBytes(uint64(max(tooLarge.Size, 0))), humanize.IBytes(uint64(tooLarge.Max)))
			body["fileSize"] = tooLarge.Size
			body["maxSize"] = tooLarge.Max
		}
	case ingest.KindMissingSection:
		status = http.StatusBadRequest
		body["message"] = msgMissingSection
		body["hint"] = msgMissingHint
	case ingest.KindTimeout:
		status = http.StatusRequestTimeout
		body["message"] = msgTimeout
	case ingest.KindStorage:
		status = http.StatusServiceUnavailable
		body["message"] = msgStorage
	default:
		h.log.Error("upload failed", "err", err)
	}
	if h.verbose {
		body["error"] = err.Error()
	}
	c.JSON(status, body)
}

// ---------- Attendees ----------

func (h *Handler) ListAttendees(c *gin.Context) {
	status, ok := attendance.ParseStatus(c.Query("status"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": msgInvalidStatus})
		return
	}
	records, err := h.attendees.List(c.Request.Context(), c.Query("search"), status)
	if err != nil {
		h.internal(c, msgFetch, err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) GetAttendee(c *gin.Context) {
	rec, err := h.attendees.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": msgNotFound})
	case err != nil:
		h.internal(c, msgFetch, err)
	default:
		c.JSON(http.StatusOK, rec)
	}
}

func (h *Handler) UpdateAttendee(c *gin.Context) {
	var patch attendance.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": msgInvalidData, "errors": []string{err.Error()}})
		return
	}

	rec, err := h.attendees.Update(c.Request.Context(), c.Param("id"), patch)
	var invalid *attendance.ValidationError
	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"message": msgInvalidData, "errors": invalid.Messages})
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": msgNotFound})
	case err != nil:
		h.internal(c, msgUpdate, err)
	default:
		c.JSON(http.StatusOK, rec)
	}
}

func (h *Handler) DeleteAttendee(c *gin.Context) {
	err := h.attendees.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": msgNotFound})
	case err != nil:
		h.internal(c, msgDelete, err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": msgDeleted})
	}
}

// ---------- Export & statistics ----------

func (h *Handler) Export(c *gin.Context) {
	records, err := h.attendees.Exportable(c.Request.Context())
	if err != nil {
		h.internal(c, msgExport, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, records); err != nil {
		h.internal(c, msgExport, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.FileName+`"`)
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

func (h *Handler) Statistics(c *gin.Context) {
	st, err := h.attendees.Statistics(c.Request.Context())
	if err != nil {
		h.internal(c, msgStatistics, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ---------- Files ----------

func (h *Handler) ListFiles(c *gin.Context) {
	files, err := h.attendees.Files(c.Request.Context())
	if err != nil {
		h.internal(c, msgFetch, err)
		return
	}
	if files == nil {
		files = []attendance.FileDescriptor{}
	}
	c.JSON(http.StatusOK, files)
}

func (h *Handler) GetFile(c *gin.Context) {
	f, err := h.attendees.File(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": msgFileNotFound})
	case err != nil:
		h.internal(c, msgFetch, err)
	default:
		c.JSON(http.StatusOK, f)
	}
}

// DeleteFile purges the records of an ingest. Records are not attributed to
// files, so this clears the whole store.
func (h *Handler) DeleteFile(c *gin.Context) {
	err := h.attendees.PurgeFile(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": msgFileNotFound})
	case err != nil:
		h.internal(c, msgDelete, err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": msgFileDeleted})
	}
}

func (h *Handler) internal(c *gin.Context, msg string, err error) {
	h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": msg})
}
