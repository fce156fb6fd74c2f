package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/middlewares"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/models"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/models/reports"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/workflow"
)

const defaultPort = "8080"

func respondError(c *gin.Context, status int, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func parseOrderKind(raw string) (models.OrderKind, error) {
	switch strings.ToLower(raw) {
	case "export":
		return models.OrderKindExport, nil
	case "inbound":
		return models.OrderKindInbound, nil
	default:
		return "", errors.New("kind must be export or inbound")
	}
}

func signinHandler() gin.HandlerFunc {
	type signinRequest struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	return func(c *gin.Context) {
		var req signinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		info, err := models.Signin(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			respondError(c, http.StatusUnauthorized, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func createUnitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUnit
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		unit, err := models.CreateUnit(c.Request.Context(), &input)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusCreated, unit)
	}
}

func updateUnitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewUnit
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		unit, err := models.UpdateUnit(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, unit)
	}
}

func deleteUnitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		unit, err := models.DeleteUnit(c.Request.Context(), id)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, unit)
	}
}

func listUnitsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		units, err := models.GetUnits(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, units)
	}
}

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), &input)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

func updateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		product, err := models.UpdateProduct(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func deleteProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		product, err := models.DeleteProduct(c.Request.Context(), id)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := models.GetProducts(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

func createRateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProductUnitRate
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		rate, err := models.CreateProductUnitRate(c.Request.Context(), &input)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusCreated, rate)
	}
}

func updateRateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewProductUnitRate
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		rate, err := models.UpdateProductUnitRate(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, rate)
	}
}

func deleteRateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		rate, err := models.DeleteProductUnitRate(c.Request.Context(), id)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, rate)
	}
}

func listRatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rates, err := models.GetProductUnitRates(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, rates)
	}
}

func createPositionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPosition
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		position, err := models.CreatePosition(c.Request.Context(), &input)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusCreated, position)
	}
}

func listPositionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		positions, err := models.GetPositions(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, positions)
	}
}

func deletePositionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		position, err := models.DeletePosition(c.Request.Context(), id)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, position)
	}
}

func createLotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewLot
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		lot, err := models.CreateLot(c.Request.Context(), &input)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusCreated, lot)
	}
}

func getLotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		lot, err := models.GetLot(c.Request.Context(), id)
		if err != nil {
			respondError(c, http.StatusNotFound, err)
			return
		}
		c.JSON(http.StatusOK, lot)
	}
}

func listLotsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.LotStatus
		if raw := c.Query("status"); raw != "" {
			s := models.LotStatus(raw)
			if s != models.LotStatusActive && s != models.LotStatusExported {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			status = &s
		}
		var warehouse *string
		if raw := c.Query("warehouse"); raw != "" {
			warehouse = &raw
		}
		lots, err := models.GetLots(c.Request.Context(), status, warehouse)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, lots)
	}
}

func splitLotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input workflow.SplitLotInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		result, err := workflow.ProcessSplitWorkflow(c.Request.Context(), &input)
		if err != nil {
			if errors.Is(err, models.ErrOverConsumption) {
				respondError(c, http.StatusConflict, err)
				return
			}
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func mergeLotsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input workflow.MergeLotsInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		result, err := workflow.ProcessMergeWorkflow(c.Request.Context(), &input)
		if err != nil {
			if errors.Is(err, workflow.ErrPositionReleaseNotConfirmed) {
				respondError(c, http.StatusConflict, err)
				return
			}
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func exportDraftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input workflow.MovementDraftInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		input.LotId = id
		result, err := workflow.ProcessExportWorkflow(c.Request.Context(), &input)
		if err != nil {
			if errors.Is(err, models.ErrOverConsumption) {
				respondError(c, http.StatusConflict, err)
				return
			}
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func inboundDraftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input workflow.MovementDraftInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		input.LotId = id
		result, err := workflow.ProcessInboundWorkflow(c.Request.Context(), &input)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func listDraftsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, err := parseOrderKind(c.Param("kind"))
		if err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		drafts, err := models.GetPendingDrafts(c.Request.Context(), kind)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, drafts)
	}
}

func deleteDraftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lotId, ok := pathId(c, "id")
		if !ok {
			return
		}
		eventId, ok := pathId(c, "eventId")
		if !ok {
			return
		}
		event, err := models.DeleteDraftEvent(c.Request.Context(), lotId, eventId)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"deleted": event,
			"warning": "the stock change this draft applied was not reversed",
		})
	}
}

func bookDraftsHandler() gin.HandlerFunc {
	type bookRequest struct {
		EventIds []int `json:"event_ids"`
	}
	return func(c *gin.Context) {
		kind, err := parseOrderKind(c.Param("kind"))
		if err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		var req bookRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, err)
				return
			}
		}
		result, err := workflow.ProcessBookingWorkflow(c.Request.Context(), kind, req.EventIds)
		if err != nil {
			if errors.Is(err, workflow.ErrNoPendingDrafts) {
				respondError(c, http.StatusConflict, err)
				return
			}
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		status := http.StatusOK
		if len(result.Failures) > 0 {
			status = http.StatusMultiStatus
		}
		c.JSON(status, result)
	}
}

func getOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		order, err := models.GetOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, http.StatusNotFound, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func listOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var kind *models.OrderKind
		if raw := c.Query("kind"); raw != "" {
			k, err := parseOrderKind(raw)
			if err != nil {
				respondError(c, http.StatusBadRequest, err)
				return
			}
			kind = &k
		}
		orders, err := models.GetOrders(c.Request.Context(), kind)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

func setAccountingBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAccountingBalance
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		balance, err := models.SetAccountingBalance(c.Request.Context(), &input)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, balance)
	}
}

func listAccountingBalancesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		balances, err := models.GetAccountingBalances(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, balances)
	}
}

// reconciliationQuery reads cutoff/warehouse/unit from the query string.
// The warehouse scope falls back to the one pinned on the request context
// by the auth middleware.
func reconciliationQuery(c *gin.Context) (reports.ReconciliationQuery, error) {
	query := reports.ReconciliationQuery{
		Warehouse:  c.Query("warehouse"),
		TargetUnit: c.Query("unit"),
	}
	if query.Warehouse == "" {
		if warehouse, ok := utils.GetWarehouseFromContext(c.Request.Context()); ok {
			query.Warehouse = warehouse
		}
	}
	if raw := c.Query("cutoff"); raw != "" {
		cutoff, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return query, errors.New("cutoff must be a date in YYYY-MM-DD form")
		}
		query.Cutoff = cutoff
	}
	return query, nil
}

func reconciliationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		query, err := reconciliationQuery(c)
		if err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		rows, err := workflow.ProcessReconciliationWorkflow(c.Request.Context(), query)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func reconciliationExcelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		query, err := reconciliationQuery(c)
		if err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		rows, err := workflow.ProcessReconciliationWorkflow(c.Request.Context(), query)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		f, err := reports.BuildReconciliationWorkbook(rows)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		if err := reports.WriteExcelResponse(c.Writer, f, "reconciliation.xlsx"); err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
	}
}

func updateNumberSeriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewDocumentNumberSeries
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		series, err := models.UpdateDocumentNumberSeries(c.Request.Context(), &input)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, series)
	}
}

func listNumberSeriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		series, err := models.GetDocumentNumberSeries(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, series)
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, _ := utils.GetIsAdminFromContext(c.Request.Context()); !role {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		if input.BusinessId == "" {
			businessId, _ := utils.GetBusinessIdFromContext(c.Request.Context())
			input.BusinessId = businessId
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func listUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := models.GetUsers(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

// customErrorLogger logs only requests that accumulated errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
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

	// Start the HTTP server ASAP so the startup probe passes.
	// Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(customErrorLogger(logger))
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require explicit allowlist via CORS_ALLOWED_ORIGINS
	// (comma-separated). In non-production, allow all.
	if strings.EqualFold(os.Getenv("APP_ENV"), "production") {
		allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.POST("/signin", signinHandler())

	api := r.Group("/", middlewares.AuthMiddleware())

	api.GET("/units", listUnitsHandler())
	api.POST("/units", createUnitHandler())
	api.PUT("/units/:id", updateUnitHandler())
	api.DELETE("/units/:id", deleteUnitHandler())

	api.GET("/products", listProductsHandler())
	api.POST("/products", createProductHandler())
	api.PUT("/products/:id", updateProductHandler())
	api.DELETE("/products/:id", deleteProductHandler())

	api.GET("/product-unit-rates", listRatesHandler())
	api.POST("/product-unit-rates", createRateHandler())
	api.PUT("/product-unit-rates/:id", updateRateHandler())
	api.DELETE("/product-unit-rates/:id", deleteRateHandler())

	api.GET("/positions", listPositionsHandler())
	api.POST("/positions", createPositionHandler())
	api.DELETE("/positions/:id", deletePositionHandler())

	api.GET("/lots", listLotsHandler())
	api.POST("/lots", createLotHandler())
	api.GET("/lots/:id", getLotHandler())
	api.POST("/lots/split", splitLotHandler())
	api.POST("/lots/merge", mergeLotsHandler())
	api.POST("/lots/:id/export", exportDraftHandler())
	api.POST("/lots/:id/inbound", inboundDraftHandler())
	api.DELETE("/lots/:id/events/:eventId", deleteDraftHandler())

	api.GET("/drafts/:kind", listDraftsHandler())
	api.POST("/drafts/:kind/book", bookDraftsHandler())

	api.GET("/orders", listOrdersHandler())
	api.GET("/orders/:id", getOrderHandler())

	api.GET("/accounting-balances", listAccountingBalancesHandler())
	api.PUT("/accounting-balances", setAccountingBalanceHandler())

	api.GET("/reports/reconciliation", reconciliationHandler())
	api.GET("/reports/reconciliation/xlsx", reconciliationExcelHandler())

	api.GET("/number-series", listNumberSeriesHandler())
	api.PUT("/number-series", updateNumberSeriesHandler())

	api.GET("/users", listUsersHandler())
	api.POST("/users", createUserHandler())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	// Start listening immediately (startup probe is TCP based).
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
	// AutoMigrate can run DDL that blocks tables; allow disabling migrations
	// on startup and running them as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
