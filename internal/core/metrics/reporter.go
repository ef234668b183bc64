package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// 效能等級
const (
	GradeExcellent  = "excellent"
	GradeGood       = "good"
	GradeAcceptable = "acceptable"
	GradePoor       = "poor"
)

// Options 成本與延遲門檻
type Options struct {
	FunctionName     string
	CostPer1KTokens  float64
	CostThresholdEUR float64
	LatencyBudget    time.Duration
	// Registerer 為 nil 時不註冊 prometheus 指標
	Registerer prometheus.Registerer
}

// Invocation 一次分析呼叫的觀測資料
type Invocation struct {
	Duration   time.Duration
	TokensUsed int
	Success    bool
	ErrorKind  string
	Tier       string
	Model      string
}

// Entry 寫入日誌的指標紀錄
type Entry struct {
	FunctionName     string  `json:"function_name"`
	ExecutionTimeMs  int64   `json:"execution_time_ms"`
	TokensUsed       int     `json:"tokens_used"`
	CostEstimateEUR  float64 `json:"cost_estimate_eur"`
	Success          bool    `json:"success"`
	Error            string  `json:"error,omitempty"`
	CostPerToken     float64 `json:"cost_per_token"`
	PerformanceGrade string  `json:"performance_grade"`
}

// Reporter 記錄每次分析的延遲、成功率與估算成本，本身的失敗不會影響呼叫端
type Reporter struct {
	opts   Options
	logger *zap.Logger

	calls    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	tokens   prometheus.Counter
	cost     prometheus.Counter
	warnings *prometheus.CounterVec
	clamped  *prometheus.CounterVec
	dropped  prometheus.Counter
	fallback prometheus.Counter
}

// NewReporter 創建指標記錄器
func NewReporter(opts Options, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.FunctionName == "" {
		opts.FunctionName = "analyzeMenu"
	}
	r := &Reporter{opts: opts, logger: logger}
	if opts.Registerer == nil {
		return r
	}

	f := promauto.With(opts.Registerer)
	r.calls = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menu",
		Subsystem: "analysis",
		Name:      "invocations_total",
		Help:      "Menu analysis invocations by outcome.",
	}, []string{"success", "error_kind"})
	r.latency = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "menu",
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "End to end menu analysis latency.",
		Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 21, 34, 55},
	}, []string{"grade"})
	r.tokens = f.NewCounter(prometheus.CounterOpts{
		Namespace: "menu",
		Subsystem: "analysis",
		Name:      "tokens_total",
		Help:      "Tokens reported by the upstream model.",
	})
	r.cost = f.NewCounter(prometheus.CounterOpts{
		Namespace: "menu",
		Subsystem: "analysis",
		Name:      "cost_eur_total",
		Help:      "Estimated upstream cost in EUR.",
	})
	r.warnings = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menu",
		Subsystem: "analysis",
		Name:      "budget_warnings_total",
		Help:      "Invocations that exceeded the cost or latency budget.",
	}, []string{"budget"})
	r.clamped = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menu",
		Subsystem: "validator",
		Name:      "clamped_fields_total",
		Help:      "Dish fields clamped into their allowed range.",
	}, []string{"field"})
	r.dropped = f.NewCounter(prometheus.CounterOpts{
		Namespace: "menu",
		Subsystem: "validator",
		Name:      "dropped_records_total",
		Help:      "Dish records dropped for missing a usable name.",
	})
	r.fallback = f.NewCounter(prometheus.CounterOpts{
		Namespace: "menu",
		Subsystem: "analysis",
		Name:      "tier_fallbacks_total",
		Help:      "Advanced analyses that fell back to the basic tier.",
	})
	return r
}

// PerformanceGrade 依耗時分級
func PerformanceGrade(d time.Duration) string {
	ms := d.Milliseconds()
	switch {
	case ms <= 3000:
		return GradeExcellent
	case ms <= 5000:
		return GradeGood
	case ms <= 8000:
		return GradeAcceptable
	default:
		return GradePoor
	}
}

// Record 記錄一次呼叫，回傳寫入日誌的內容
func (r *Reporter) Record(inv Invocation) (entry Entry) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("failed to record metrics", zap.Any("panic", rec))
		}
	}()

	cost := float64(inv.TokensUsed) * r.opts.CostPer1KTokens / 1000
	entry = Entry{
		FunctionName:     r.opts.FunctionName,
		ExecutionTimeMs:  inv.Duration.Milliseconds(),
		TokensUsed:       inv.TokensUsed,
		CostEstimateEUR:  cost,
		Success:          inv.Success,
		Error:            inv.ErrorKind,
		PerformanceGrade: PerformanceGrade(inv.Duration),
	}
	// 沒有用到 token 時為 0
	if inv.TokensUsed > 0 {
		entry.CostPerToken = cost / float64(inv.TokensUsed)
	}

	r.logger.Info("function_metrics",
		zap.String("function_name", entry.FunctionName),
		zap.Int64("execution_time_ms", entry.ExecutionTimeMs),
		zap.Int("tokens_used", entry.TokensUsed),
		zap.Float64("cost_estimate_eur", entry.CostEstimateEUR),
		zap.Bool("success", entry.Success),
		zap.String("error", entry.Error),
		zap.Float64("cost_per_token", entry.CostPerToken),
		zap.String("performance_grade", entry.PerformanceGrade),
		zap.String("tier", inv.Tier),
		zap.String("model", inv.Model),
	)

	if r.opts.CostThresholdEUR > 0 && entry.CostEstimateEUR > r.opts.CostThresholdEUR {
		r.logger.Warn("High cost function execution",
			zap.String("function_name", entry.FunctionName),
			zap.Float64("cost_estimate_eur", entry.CostEstimateEUR),
			zap.Float64("threshold_eur", r.opts.CostThresholdEUR),
		)
		r.warn("cost")
	}
	if r.opts.LatencyBudget > 0 && inv.Duration > r.opts.LatencyBudget {
		r.logger.Warn("Slow function execution",
			zap.String("function_name", entry.FunctionName),
			zap.Int64("execution_time_ms", entry.ExecutionTimeMs),
			zap.Int64("budget_ms", r.opts.LatencyBudget.Milliseconds()),
		)
		r.warn("latency")
	}

	if r.calls != nil {
		success := "false"
		if inv.Success {
			success = "true"
		}
		r.calls.WithLabelValues(success, inv.ErrorKind).Inc()
		r.latency.WithLabelValues(entry.PerformanceGrade).Observe(inv.Duration.Seconds())
		r.tokens.Add(float64(inv.TokensUsed))
		r.cost.Add(entry.CostEstimateEUR)
	}
	return entry
}

// ObserveValidation 記錄驗證階段被截斷的欄位與被丟棄的紀錄
func (r *Reporter) ObserveValidation(clampedFields []string, dropped int) {
	defer func() { _ = recover() }()
	if r.clamped == nil {
		return
	}
	for _, field := range clampedFields {
		r.clamped.WithLabelValues(field).Inc()
	}
	r.dropped.Add(float64(dropped))
}

// ObserveFallback 記錄一次進階分析退回基本分析
func (r *Reporter) ObserveFallback() {
	if r.fallback != nil {
		r.fallback.Inc()
	}
}

func (r *Reporter) warn(budget string) {
	if r.warnings != nil {
		r.warnings.WithLabelValues(budget).Inc()
	}
}
