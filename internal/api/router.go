package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/soaringjerry/FormPulse/internal/middleware"
	"github.com/soaringjerry/FormPulse/internal/services"
	"github.com/soaringjerry/FormPulse/internal/utils"
)

// Options configures a Router. Only Store is required.
type Options struct {
	Cache         services.ReportCache
	Storage       services.ObjectStorage
	ArchiveExpiry time.Duration
	Hub           *LiveHub
	Log           *zap.Logger
	JWTSecret     string
	JWTIssuer     string
	Origins       []string
	Commit        string
	BuildTime     string
}

type Router struct {
	store     Store
	analytics *services.AnalyticsService
	exports   *services.ExportService
	archive   *services.ArchiveService
	responses *services.ResponseService
	hub       *LiveHub
	log       *zap.Logger
	opts      Options
}

func NewRouter(store Store, opts Options) *Router {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewLiveHub(log, opts.Origins)
	}
	exports := services.NewExportService(store)
	var archive *services.ArchiveService
	if opts.Storage != nil {
		archive = services.NewArchiveService(exports, opts.Storage, opts.ArchiveExpiry)
	}
	return &Router{
		store:     store,
		analytics: services.NewAnalyticsService(store, opts.Cache, log),
		exports:   exports,
		archive:   archive,
		responses: services.NewResponseService(store, opts.Cache, hub, log),
		hub:       hub,
		log:       log,
		opts:      opts,
	}
}

// Engine builds a gin engine with the standard middleware chain and every
// route registered.
func (rt *Router) Engine() *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(rt.log),
		middleware.Recovery(rt.log),
		middleware.SecureHeaders(),
		middleware.CORS(rt.opts.Origins),
		middleware.NoStore(),
		middleware.Locale(),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`/live$`})),
	)
	rt.Register(r)
	return r
}

func (rt *Router) Register(r gin.IRouter) {
	r.GET("/health", rt.handleHealth)
	r.GET("/version", rt.handleVersion)

	apiGroup := r.Group("/api")
	apiGroup.GET("/forms/public/:shareableUrl", rt.handlePublicForm)
	apiGroup.POST("/responses/submit", rt.handleSubmit)

	authed := apiGroup.Group("", middleware.RequireAuth(rt.opts.JWTSecret, rt.opts.JWTIssuer))
	authed.GET("/analytics/form/:formId", rt.handleAnalytics)
	authed.GET("/analytics/form/:formId/export/:format", rt.handleExport)
	authed.POST("/analytics/form/:formId/export/archive", rt.handleArchive)
	authed.GET("/analytics/form/:formId/live", rt.handleLive)
	authed.GET("/responses/form/:formId", rt.handleListResponses)
	authed.GET("/responses/:id", rt.handleGetResponse)
	authed.DELETE("/responses/:id", rt.handleDeleteResponse)
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorForbidden:
		return http.StatusForbidden
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict:
		return http.StatusConflict
	case services.ErrorGone:
		return http.StatusGone
	case services.ErrorTooManyRequests:
		return http.StatusTooManyRequests
	case services.ErrorBadGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail renders err. Service errors keep their status and get a localized
// message; anything else is logged and reported as a 500.
func (rt *Router) fail(c *gin.Context, err error) {
	locale := middleware.LocaleFromContext(c)
	if se, ok := services.AsServiceError(err); ok {
		msg := se.Message
		if se.Key != "" {
			if v, ok := utils.Lookup(locale, se.Key); ok {
				msg = v
			}
		}
		c.AbortWithStatusJSON(statusFor(se.Code), gin.H{"error": msg})
		return
	}
	rt.log.Error("request failed",
		zap.String("path", c.FullPath()),
		zap.String("request_id", c.GetString("request_id")),
		zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": utils.T(locale, "error.internal")})
}

func (rt *Router) badRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": utils.T(middleware.LocaleFromContext(c), "error.bad_request")})
}

func (rt *Router) handleHealth(c *gin.Context) {
	locale := middleware.LocaleFromContext(c)
	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"name":       "FormPulse API",
		"locale":     locale,
		"msg":        utils.T(locale, "health.ok"),
		"commit":     rt.opts.Commit,
		"build_time": rt.opts.BuildTime,
	})
}

func (rt *Router) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"commit": rt.opts.Commit, "build_time": rt.opts.BuildTime})
}

// GET /api/analytics/form/:formId
func (rt *Router) handleAnalytics(c *gin.Context) {
	owner, _ := middleware.OwnerID(c)
	report, err := rt.analytics.Summary(c.Request.Context(), owner, c.Param("formId"))
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GET /api/analytics/form/:formId/export/:format
func (rt *Router) handleExport(c *gin.Context) {
	owner, _ := middleware.OwnerID(c)
	res, err := rt.exports.Export(c.Request.Context(), services.ExportParams{
		OwnerID: owner,
		FormID:  c.Param("formId"),
		Format:  c.Param("format"),
	})
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	c.Data(http.StatusOK, res.ContentType, res.Data)
}

// POST /api/analytics/form/:formId/export/archive?format=
func (rt *Router) handleArchive(c *gin.Context) {
	owner, _ := middleware.OwnerID(c)
	// nil archive reports storage as unavailable
	res, err := rt.archive.Archive(c.Request.Context(), services.ExportParams{
		OwnerID: owner,
		FormID:  c.Param("formId"),
		Format:  c.Query("format"),
	})
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /api/analytics/form/:formId/live
func (rt *Router) handleLive(c *gin.Context) {
	owner, _ := middleware.OwnerID(c)
	formID := c.Param("formId")
	if err := rt.analytics.Authorize(c.Request.Context(), owner, formID); err != nil {
		rt.fail(c, err)
		return
	}
	rt.hub.Serve(c.Writer, c.Request, formID)
}

// GET /api/forms/public/:shareableUrl
func (rt *Router) handlePublicForm(c *gin.Context) {
	form, err := rt.responses.PublicForm(c.Request.Context(), c.Param("shareableUrl"))
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"form": form})
}

// POST /api/responses/submit
func (rt *Router) handleSubmit(c *gin.Context) {
	var req services.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rt.badRequest(c)
		return
	}
	req.IPAddress = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()
	resp, err := rt.responses.Submit(c.Request.Context(), req)
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"response": resp})
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

// GET /api/responses/form/:formId?page=&limit=
func (rt *Router) handleListResponses(c *gin.Context) {
	owner, _ := middleware.OwnerID(c)
	page, err := rt.responses.List(c.Request.Context(), owner, c.Param("formId"), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (rt *Router) handleGetResponse(c *gin.Context) {
	owner, _ := middleware.OwnerID(c)
	resp, err := rt.responses.Get(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": resp})
}

func (rt *Router) handleDeleteResponse(c *gin.Context) {
	owner, _ := middleware.OwnerID(c)
	if err := rt.responses.Delete(c.Request.Context(), owner, c.Param("id")); err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Response deleted successfully"})
}
