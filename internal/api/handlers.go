package api

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"ShopLens/internal/model"
	"ShopLens/internal/pipeline"
	"ShopLens/internal/report"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoplens_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shoplens_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		},
		[]string{"endpoint"},
	)
)

// Service is the report store the API reads from and triggers runs on.
type Service interface {
	Latest() *report.Report
	RunWith(ctx context.Context, p pipeline.Params) (*report.Report, error)
}

type Handler struct {
	Service  Service
	Defaults pipeline.Params // base parameters for POST /runs
}

func NewHandler(svc Service, defaults pipeline.Params) *Handler {
	return &Handler{Service: svc, Defaults: defaults}
}

// NewRouter wires the dashboard endpoints.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), observe)

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/report", h.GetReport)
		api.GET("/customers", h.GetCustomers)
		api.GET("/customers/:id", h.GetCustomer)
		api.GET("/segments", h.GetSegments)
		api.GET("/forecast", h.GetForecast)
		api.GET("/cohorts", h.GetCohorts)
		api.GET("/products", h.GetProducts)
		api.POST("/runs", h.CreateRun)
	}
	return r
}

func observe(c *gin.Context) {
	start := time.Now()
	c.Next()
	endpoint := c.FullPath()
	if endpoint == "" {
		endpoint = "unmatched"
	}
	requestsTotal.WithLabelValues(endpoint, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok", "service": "shoplens"}
	if rep := h.Service.Latest(); rep != nil {
		resp["report_id"] = rep.ID()
		resp["generated_at"] = rep.GeneratedAt()
	}
	c.JSON(http.StatusOK, resp)
}

// latest writes 503 and returns nil when no run has completed yet.
func (h *Handler) latest(c *gin.Context) *report.Report {
	rep := h.Service.Latest()
	if rep == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no report available yet"})
	}
	return rep
}

func (h *Handler) GetReport(c *gin.Context) {
	if rep := h.latest(c); rep != nil {
		c.JSON(http.StatusOK, rep)
	}
}

func (h *Handler) GetCustomers(c *gin.Context) {
	rep := h.latest(c)
	if rep == nil {
		return
	}
	segment := c.Query("segment")
	if segment != "" && !slices.Contains(rep.SegmentNames(), segment) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown segment " + segment})
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	customers := rep.Customers(segment)
	if limit >= 0 && limit < len(customers) {
		customers = customers[:limit]
	}
	c.JSON(http.StatusOK, gin.H{
		"report_id": rep.ID(),
		"count":     len(customers),
		"customers": customers,
	})
}

// queryLimit parses ?limit=; -1 means no limit. On a bad value it writes 400
// and returns false.
func queryLimit(c *gin.Context) (int, bool) {
	v := c.Query("limit")
	if v == "" {
		return -1, true
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return 0, false
	}
	return limit, true
}

func (h *Handler) GetCustomer(c *gin.Context) {
	rep := h.latest(c)
	if rep == nil {
		return
	}
	cust, ok := rep.Customer(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "customer not found"})
		return
	}
	c.JSON(http.StatusOK, cust)
}

func (h *Handler) GetSegments(c *gin.Context) {
	if rep := h.latest(c); rep != nil {
		c.JSON(http.StatusOK, rep.SegmentationView())
	}
}

func (h *Handler) GetForecast(c *gin.Context) {
	if rep := h.latest(c); rep != nil {
		c.JSON(http.StatusOK, rep.ForecastView())
	}
}

func (h *Handler) GetCohorts(c *gin.Context) {
	if rep := h.latest(c); rep != nil {
		c.JSON(http.StatusOK, gin.H{"report_id": rep.ID(), "cohorts": rep.Cohorts()})
	}
}

func (h *Handler) GetProducts(c *gin.Context) {
	rep := h.latest(c)
	if rep == nil {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	products := rep.Products(0)
	if limit >= 0 && limit < len(products) {
		products = products[:limit]
	}
	c.JSON(http.StatusOK, gin.H{
		"report_id": rep.ID(),
		"count":     len(products),
		"products":  products,
	})
}

// RunRequest overrides the default analysis parameters for one run. Omitted
// fields keep the configured values.
type RunRequest struct {
	ReferenceDate string `json:"reference_date" binding:"omitempty,datetime=2006-01-02"`
	Bins          *int   `json:"bins" binding:"omitempty,min=1"`
	K             *int   `json:"k" binding:"omitempty,min=0"`
	AutoK         *bool  `json:"auto_k"`
	Seed          *int64 `json:"seed"`
	UseScores     *bool  `json:"use_scores"`
	Granularity   string `json:"granularity" binding:"omitempty,oneof=daily weekly monthly"`
	Horizon       *int   `json:"horizon" binding:"omitempty,min=1"`
	Method        string `json:"method" binding:"omitempty,oneof=holt holt_winters moving_average"`
	SeasonLength  *int   `json:"season_length" binding:"omitempty,min=2"`
}

// Params applies the request on top of base.
func (r RunRequest) Params(base pipeline.Params) pipeline.Params {
	p := base
	p.Segment.Names = append([]string(nil), base.Segment.Names...)
	if r.ReferenceDate != "" {
		p.ReferenceDate, _ = time.Parse("2006-01-02", r.ReferenceDate)
	}
	if r.Bins != nil {
		p.RFM.Bins = *r.Bins
	}
	if r.K != nil {
		p.Segment.K = *r.K
	}
	if r.AutoK != nil {
		p.Segment.AutoK = *r.AutoK
	}
	if r.Seed != nil {
		p.Segment.Seed = *r.Seed
	}
	if r.UseScores != nil {
		p.Segment.UseScores = *r.UseScores
	}
	if r.Granularity != "" {
		p.Forecast.Granularity = model.Granularity(r.Granularity)
	}
	if r.Horizon != nil {
		p.Forecast.Horizon = *r.Horizon
	}
	if r.Method != "" {
		p.Forecast.Method = r.Method
	}
	if r.SeasonLength != nil {
		p.Forecast.SeasonLength = *r.SeasonLength
	}
	return p
}

func (h *Handler) CreateRun(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	rep, err := h.Service.RunWith(c.Request.Context(), req.Params(h.Defaults))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rep)
}

// statusFor maps analysis error kinds to HTTP status codes.
func statusFor(err error) int {
	for _, kind := range []error{
		model.ErrInvalidParameter, model.ErrSchema, model.ErrEmptyDataset,
		model.ErrInsufficientData, model.ErrInsufficientHistory, model.ErrClustering,
	} {
		if errors.Is(err, kind) {
			return http.StatusUnprocessableEntity
		}
	}
	if errors.Is(err, context.Canceled) {
		return 499
	}
	return http.StatusInternalServerError
}
