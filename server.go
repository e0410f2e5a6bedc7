package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/payroll_backend/config"
	"bitbucket.org/mmdatafocus/payroll_backend/middlewares"
	"bitbucket.org/mmdatafocus/payroll_backend/models"
	"bitbucket.org/mmdatafocus/payroll_backend/utils"
	"bitbucket.org/mmdatafocus/payroll_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("payroll-backend")

func runIdParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return 0, false
	}
	return id, true
}

func loginHandler() gin.HandlerFunc {
	type loginRequest struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		token, user, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
	}
}

func createRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPayrollRun
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		if input.SpecialistId == 0 {
			if userId, ok := utils.GetUserIdFromContext(c.Request.Context()); ok {
				input.SpecialistId = userId
			}
		}
		run, err := models.CreatePayrollRun(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, run)
	}
}

func listRunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.PayrollRunStatus
		if s := c.Query("status"); s != "" {
			parsed, err := models.ParsePayrollRunStatus(s)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			status = &parsed
		}
		var fromPeriod, toPeriod *time.Time
		if s := c.Query("from"); s != "" {
			t, err := time.Parse("2006-01", s)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM"})
				return
			}
			fromPeriod = &t
		}
		if s := c.Query("to"); s != "" {
			t, err := time.Parse("2006-01", s)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM"})
				return
			}
			toPeriod = &t
		}
		runs, err := models.GetPayrollRuns(c.Request.Context(), status, fromPeriod, toPeriod)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, runs)
	}
}

func getRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := runIdParam(c)
		if !ok {
			return
		}
		run, err := models.GetPayrollRun(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "payroll run not found"})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

func runDetailsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := runIdParam(c)
		if !ok {
			return
		}
		details, err := models.GetDetailsForRun(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, details)
	}
}

func generateDraftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := runIdParam(c)
		if !ok {
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "GenerateDraft")
		defer span.End()

		run, err := workflow.GenerateDraft(ctx, id)
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

func transitionStatus(err error) int {
	var invalid *models.InvalidTransitionError
	if errors.As(err, &invalid) {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func transitionRunHandler() gin.HandlerFunc {
	type transitionRequest struct {
		To     string `json:"to" binding:"required"`
		Reason string `json:"reason"`
	}
	return func(c *gin.Context) {
		id, ok := runIdParam(c)
		if !ok {
			return
		}
		var req transitionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		to, err := models.ParsePayrollRunStatus(req.To)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		run, err := workflow.TransitionRun(c.Request.Context(), id, to, req.Reason)
		if err != nil {
			c.JSON(transitionStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

func lockRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := runIdParam(c)
		if !ok {
			return
		}
		run, err := workflow.LockRun(c.Request.Context(), id)
		if err != nil {
			c.JSON(transitionStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

func unlockRunHandler() gin.HandlerFunc {
	type unlockRequest struct {
		Reason string `json:"reason" binding:"required"`
	}
	return func(c *gin.Context) {
		id, ok := runIdParam(c)
		if !ok {
			return
		}
		var req unlockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		run, err := workflow.UnlockRun(c.Request.Context(), id, req.Reason)
		if err != nil {
			c.JSON(transitionStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

func markPaidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := runIdParam(c)
		if !ok {
			return
		}
		run, err := workflow.MarkRunPaid(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

func detectIrregularitiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := runIdParam(c)
		if !ok {
			return
		}
		findings, err := workflow.DetectIrregularities(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"findings": findings})
	}
}

func resolveExceptionHandler() gin.HandlerFunc {
	type resolveRequest struct {
		EmployeeId int    `json:"employee_id" binding:"required"`
		Code       string `json:"code" binding:"required"`
		Note       string `json:"note"`
	}
	return func(c *gin.Context) {
		id, ok := runIdParam(c)
		if !ok {
			return
		}
		var req resolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		blob, err := workflow.ResolveEmployeeException(c.Request.Context(), id, req.EmployeeId,
			models.ExceptionCode(req.Code), req.Note)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, blob)
	}
}

func salaryOverrideHandler() gin.HandlerFunc {
	type overrideRequest struct {
		EmployeeId int             `json:"employee_id" binding:"required"`
		Amount     decimal.Decimal `json:"amount"`
	}
	return func(c *gin.Context) {
		id, ok := runIdParam(c)
		if !ok {
			return
		}
		var req overrideRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		override, err := models.UpsertSalaryOverride(c.Request.Context(), id, req.EmployeeId, req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, override)
	}
}

func decideAdjustmentHandler() gin.HandlerFunc {
	type decideRequest struct {
		Approve *bool `json:"approve" binding:"required"`
	}
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid adjustment id"})
			return
		}
		var req decideRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		adjustment, err := models.DecideAdjustment(c.Request.Context(), id, *req.Approve)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, adjustment)
	}
}

func exportSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := runIdParam(c)
		if !ok {
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=payroll-run-%d.xlsx", id))
		if err := workflow.ExportRunSummary(c.Request.Context(), id, c.Query("currency"), c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
}

// outboxReplayHandler requeues a DEAD or FAILED outbox record. Admin only.
func outboxReplayHandler() gin.HandlerFunc {
	type replayRequest struct {
		RecordId int `json:"record_id" binding:"required"`
	}
	return func(c *gin.Context) {
		if _, err := models.RequireRole(c.Request.Context(), models.UserRoleAdmin); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req replayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		now := time.Now().UTC()
		err := config.GetDB().WithContext(c.Request.Context()).
			Model(&models.PayrollEventRecord{}).
			Where("id = ?", req.RecordId).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusFailed,
				"next_attempt_at":    &now,
				"locked_at":          nil,
				"locked_by":          nil,
				"last_publish_error": nil,
			}).Error
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"requeued": req.RecordId})
	}
}

// customErrorLogger logs only requests that ended with errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the platform considers the revision
	// healthy. Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "X-Correlation-Id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/login", loginHandler())

	payroll := r.Group("/payroll")
	{
		payroll.POST("/runs", createRunHandler())
		payroll.GET("/runs", listRunsHandler())
		payroll.GET("/runs/:id", getRunHandler())
		payroll.GET("/runs/:id/details", runDetailsHandler())
		payroll.GET("/runs/:id/export", exportSummaryHandler())
		payroll.POST("/runs/:id/generate-draft", generateDraftHandler())
		payroll.POST("/runs/:id/transition", transitionRunHandler())
		payroll.POST("/runs/:id/lock", lockRunHandler())
		payroll.POST("/runs/:id/unlock", unlockRunHandler())
		// Older client names for the same operations.
		payroll.POST("/runs/:id/freeze", lockRunHandler())
		payroll.POST("/runs/:id/unfreeze", unlockRunHandler())
		payroll.POST("/runs/:id/mark-paid", markPaidHandler())
		payroll.POST("/runs/:id/irregularities", detectIrregularitiesHandler())
		payroll.POST("/runs/:id/exceptions/resolve", resolveExceptionHandler())
		payroll.POST("/runs/:id/overrides", salaryOverrideHandler())
		payroll.POST("/adjustments/:id/decide", decideAdjustmentHandler())
	}

	r.POST("/internal/ops/outbox/replay", outboxReplayHandler())
	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Outbox dispatcher publishes AFTER commit.
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go workflow.NewOutboxDispatcher(db, logger).Run(dispatcherCtx)

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers before draining requests.
	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
