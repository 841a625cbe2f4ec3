package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/caddl-lab-desk/internal/domain"
	"github.com/caddl-lab-desk/internal/health"
	"github.com/caddl-lab-desk/internal/service"
)

type loginRequest struct {
	TechNumber string `json:"techNumber"`
	Password   string `json:"password"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest("invalid login request", err))
		return
	}
	session, err := s.auth.Login(req.TechNumber, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type categoryView struct {
	Key           domain.CategoryKey `json:"key"`
	Label         string             `json:"label"`
	SubCategories []string           `json:"subCategories,omitempty"`
	TestCount     int                `json:"testCount"`
}

func (s *Server) categoryViews() []categoryView {
	cat := s.reports.Catalog()
	out := make([]categoryView, 0, len(cat.Categories()))
	for _, category := range cat.Categories() {
		out = append(out, categoryView{
			Key:           category.Key,
			Label:         category.Label,
			SubCategories: cat.SubCategories(category.Key),
			TestCount:     len(cat.ForCategory(category.Key)),
		})
	}
	return out
}

func (s *Server) handleCatalog(c *gin.Context) {
	tests := s.reports.Catalog().Tests()
	if key := c.Query("category"); key != "" {
		tests = s.reports.Catalog().ForCategory(domain.CategoryKey(key))
	}
	c.JSON(http.StatusOK, gin.H{
		"categories": s.categoryViews(),
		"tests":      tests,
	})
}

func (s *Server) handleCategories(c *gin.Context) {
	c.JSON(http.StatusOK, s.categoryViews())
}

type classifyRequest struct {
	Value       string `json:"value"`
	NormalRange string `json:"normalRange"`
}

func (s *Server) handleClassify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest("invalid classify request", err))
		return
	}
	classifier := s.reports.Classifier()
	c.JSON(http.StatusOK, gin.H{
		"abnormal": classifier.IsAbnormal(req.Value, req.NormalRange),
		"kind":     classifier.Kind(req.NormalRange).String(),
	})
}

func (s *Server) handleNewDraft(c *gin.Context) {
	c.JSON(http.StatusCreated, s.reports.NewDraft())
}

type entryRequest struct {
	Draft     domain.DiagnosticReport `json:"draft"`
	Operation service.EntryOperation  `json:"operation"`
}

func (s *Server) handleDraftEntry(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest("invalid entry request", err))
		return
	}
	draft, err := s.reports.ApplyEntry(req.Draft, req.Operation)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

type draftRequest struct {
	Draft domain.DiagnosticReport `json:"draft"`
}

func (s *Server) handleDraftInsight(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest("invalid insight request", err))
		return
	}
	draft, err := s.insights.Enrich(c.Request.Context(), req.Draft)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (s *Server) handleListReports(c *gin.Context) {
	summaries, err := s.reports.Summaries(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleSaveReport(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest("invalid report", err))
		return
	}
	saved, err := s.reports.Save(c.Request.Context(), req.Draft)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (s *Server) handleGetReport(c *gin.Context) {
	report, err := s.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleAnnotatedReport(c *gin.Context) {
	annotated, err := s.reports.Annotated(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, annotated)
}

func (s *Server) handleReportPDF(c *gin.Context) {
	annotated, err := s.reports.Annotated(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	data, err := s.renderer.Render(annotated)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+annotated.Report.FileName()+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

func (s *Server) handleDeleteReport(c *gin.Context) {
	if err := s.reports.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDashboard(c *gin.Context) {
	stats, err := s.reports.Dashboard(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleListConsultations(c *gin.Context) {
	list, err := s.consultations.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateConsultation(c *gin.Context) {
	var req service.CreateConsultationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest("invalid consultation request", err))
		return
	}
	created, err := s.consultations.Create(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type statusRequest struct {
	Status domain.ConsultationStatus `json:"status"`
}

func (s *Server) handleUpdateConsultation(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest("invalid status update", err))
		return
	}
	updated, err := s.consultations.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteConsultation(c *gin.Context) {
	if err := s.consultations.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSearchGallery(c *gin.Context) {
	items, err := s.gallery.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type uploadRequest struct {
	DataURL string `json:"dataUrl"`
}

// handleUploadGallery accepts either a multipart "image" file or a JSON
// body carrying a data URL.
func (s *Server) handleUploadGallery(c *gin.Context) {
	var (
		data []byte
		mime string
		err  error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		data, mime, err = readUpload(c, "image")
	} else {
		var req uploadRequest
		if err = c.ShouldBindJSON(&req); err == nil {
			mime, data, err = service.ParseDataURL(req.DataURL)
		} else {
			err = badRequest("invalid upload request", err)
		}
	}
	if err != nil {
		s.respondError(c, err)
		return
	}

	item, err := s.gallery.Upload(c.Request.Context(), data, mime)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func readUpload(c *gin.Context, field string) ([]byte, string, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, "", badRequest("missing "+field+" file", err)
	}
	f, err := header.Open()
	if err != nil {
		return nil, "", badRequest("unreadable "+field+" file", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", badRequest("unreadable "+field+" file", err)
	}
	return data, header.Header.Get("Content-Type"), nil
}

func (s *Server) handleDeleteGallery(c *gin.Context) {
	if err := s.gallery.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleBackup(c *gin.Context) {
	archive, err := s.reports.Export(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	name := "caddl_backup_" + s.now().Format(domain.DateLayout) + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.JSON(http.StatusOK, archive)
}

// handleRestore accepts the archive as the raw body or as a multipart
// "file" upload.
func (s *Server) handleRestore(c *gin.Context) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		data, _, err = readUpload(c, "file")
	} else {
		data, err = io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if !errors.As(err, &tooLarge) {
				err = badRequest("unreadable archive", err)
			}
		}
	}
	if err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.reports.Restore(c.Request.Context(), data)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"overall": health.HealthStateHealthy, "version": s.version})
		return
	}
	status := s.health.Run(c.Request.Context())
	code := http.StatusOK
	if status.Overall == health.HealthStateUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
