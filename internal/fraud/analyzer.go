package fraud

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"coin-ledger/internal/domain"
	"coin-ledger/internal/repository"

	"go.uber.org/zap"
)

// Config carries the analyzer thresholds. Zero values are replaced by
// defaults in NewAnalyzer.
type Config struct {
	VelocityHourly      int      // trailing-hour count that triggers high_velocity
	VelocityDaily       int      // trailing-24h count that triggers sustained_activity
	LargeAmount         int64    // coin amount that triggers large_amount
	DeviationMultiplier float64  // multiple of historical average that triggers behavioral deviation
	PatternMatchMin     int      // recent matches required before a learned pattern fires
	HighRiskCountries   []string // ISO country codes scored as high risk
}

func (c Config) withDefaults() Config {
	if c.VelocityHourly == 0 {
		c.VelocityHourly = 20
	}
	if c.VelocityDaily == 0 {
		c.VelocityDaily = 100
	}
	if c.LargeAmount == 0 {
		c.LargeAmount = 25_000
	}
	if c.DeviationMultiplier == 0 {
		c.DeviationMultiplier = 5
	}
	if c.PatternMatchMin == 0 {
		c.PatternMatchMin = 3
	}
	return c
}

// Input is the gathered context a scorer works from. Keeping the scorer
// a pure function of Input lets a trained model replace the heuristics
// without touching the processor or the gathering code.
type Input struct {
	Request       *domain.TransactionRequest
	Now           time.Time
	Recent24h     []*domain.Transaction // the account's transactions in the trailing 24h, oldest first
	CountLastHour int
	AvgAmount     float64 // historical average for this transaction type, 0 = no history
	Country       string  // resolved country code, "" = unresolved
	CountryKnown  bool    // account has transacted from this country before
	Flagged       bool    // account is in the suspicious set
	Patterns      *PatternCache
	Config        Config
}

// Scorer turns gathered context into a fraud assessment.
type Scorer interface {
	Score(in *Input) *domain.FraudAssessment
}

// Analyzer gathers per-request context and delegates scoring to the
// configured strategy.
type Analyzer struct {
	txRepo     repository.TransactionRepository
	scorer     Scorer
	patterns   *PatternCache
	suspicious *SuspiciousSet
	geo        GeoResolver // optional
	cfg        Config
	logger     *zap.Logger

	mu            sync.Mutex
	seenCountries map[string]map[string]struct{} // userID -> country set, process-local
}

func NewAnalyzer(
	txRepo repository.TransactionRepository,
	scorer Scorer,
	patterns *PatternCache,
	suspicious *SuspiciousSet,
	geo GeoResolver,
	cfg Config,
	logger *zap.Logger,
) *Analyzer {
	if scorer == nil {
		scorer = &HeuristicScorer{}
	}
	return &Analyzer{
		txRepo:        txRepo,
		scorer:        scorer,
		patterns:      patterns,
		suspicious:    suspicious,
		geo:           geo,
		cfg:           cfg.withDefaults(),
		logger:        logger,
		seenCountries: make(map[string]map[string]struct{}),
	}
}

// Analyze scores one transaction request. Gathering failures degrade to
// partial context rather than failing the transaction.
func (a *Analyzer) Analyze(ctx context.Context, req *domain.TransactionRequest) (*domain.FraudAssessment, error) {
	now := time.Now()

	recent, err := a.txRepo.ListByUser(ctx, req.UserID, repository.TxFilter{
		Since: now.Add(-24 * time.Hour),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load recent transactions: %w", err)
	}

	countHour := 0
	hourAgo := now.Add(-time.Hour)
	for _, tx := range recent {
		if !tx.CreatedAt.Before(hourAgo) {
			countHour++
		}
	}

	avg, err := a.txRepo.AverageAmount(ctx, req.UserID, req.Type)
	if err != nil {
		a.logger.Warn("failed to load historical average",
			zap.String("user_id", req.UserID), zap.Error(err))
		avg = 0
	}

	country := a.resolveCountry(req)
	known := a.countryKnown(req.UserID, country)

	in := &Input{
		Request:       req,
		Now:           now,
		Recent24h:     recent,
		CountLastHour: countHour,
		AvgAmount:     avg,
		Country:       country,
		CountryKnown:  known,
		Flagged:       a.suspicious.Contains(req.UserID),
		Patterns:      a.patterns,
		Config:        a.cfg,
	}

	assessment := a.scorer.Score(in)

	a.logger.Info("fraud analysis completed",
		zap.String("user_id", req.UserID),
		zap.String("type", string(req.Type)),
		zap.Int("score", assessment.Score),
		zap.String("level", string(assessment.Level)),
		zap.Strings("flags", assessment.Flags()))

	return assessment, nil
}

// Learn records a fraud-learning signal from a high-score transaction:
// the account joins the suspicious set and its request shape becomes a
// stored pattern biasing future scoring.
func (a *Analyzer) Learn(req *domain.TransactionRequest, score int) {
	a.suspicious.Add(req.UserID)

	weight := score / 5
	if weight < 10 {
		weight = 10
	}
	sig := domain.TxSignature(req.Type, req.Amount)
	a.patterns.Add(&domain.FraudPattern{
		Signature:   sig,
		Description: fmt.Sprintf("repeated %s activity from flagged account", sig),
		Weight:      weight,
		UserID:      req.UserID,
		CreatedAt:   time.Now(),
	})
}

// Patterns exposes the cache for the background monitor's purge pass.
func (a *Analyzer) Patterns() *PatternCache { return a.patterns }

// Suspicious exposes the suspicious set for the monitor's refresh pass.
func (a *Analyzer) Suspicious() *SuspiciousSet { return a.suspicious }

func (a *Analyzer) resolveCountry(req *domain.TransactionRequest) string {
	if req.Geo == nil {
		return ""
	}
	if req.Geo.Country != "" {
		return strings.ToUpper(req.Geo.Country)
	}
	if req.Geo.IPAddress != "" && a.geo != nil {
		country, err := a.geo.Country(req.Geo.IPAddress)
		if err != nil {
			a.logger.Debug("geoip lookup failed",
				zap.String("ip", req.Geo.IPAddress), zap.Error(err))
			return ""
		}
		return strings.ToUpper(country)
	}
	return ""
}

// countryKnown reports whether the account transacted from this country
// before, and records the sighting.
func (a *Analyzer) countryKnown(userID, country string) bool {
	if country == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	seen, ok := a.seenCountries[userID]
	if !ok {
		seen = make(map[string]struct{})
		a.seenCountries[userID] = seen
	}
	_, known := seen[country]
	seen[country] = struct{}{}
	return known
}

// HeuristicScorer is the default scoring strategy: independent additive
// signals, each with a bounded weight, capped at 100.
type HeuristicScorer struct{}

func (s *HeuristicScorer) Score(in *Input) *domain.FraudAssessment {
	cfg := in.Config
	assessment := &domain.FraudAssessment{}

	add := func(factor, description string, score int) {
		assessment.Factors = append(assessment.Factors, domain.RiskFactor{
			Factor:      factor,
			Description: description,
			Score:       score,
		})
		assessment.Score += score
	}

	// Velocity
	switch {
	case in.CountLastHour >= cfg.VelocityHourly:
		add("high_velocity",
			fmt.Sprintf("%d transactions in the last hour", in.CountLastHour), 25)
	case in.CountLastHour >= cfg.VelocityHourly/2:
		add("elevated_velocity",
			fmt.Sprintf("%d transactions in the last hour", in.CountLastHour), 10)
	}
	if len(in.Recent24h) >= cfg.VelocityDaily {
		add("sustained_activity",
			fmt.Sprintf("%d transactions in the last 24 hours", len(in.Recent24h)), 15)
	}
	if gap, ok := medianGap(in.Recent24h); ok && gap < 2*time.Minute {
		add("rapid_succession",
			fmt.Sprintf("median gap between recent transactions is %s", gap.Round(time.Second)), 15)
	}

	// Amount
	if in.Request.Amount > cfg.LargeAmount {
		add("large_amount",
			fmt.Sprintf("amount %d exceeds large-amount threshold %d", in.Request.Amount, cfg.LargeAmount), 20)
	}

	// Time-of-day clustering
	if share, hour, ok := hourClustering(in.Recent24h); ok && share > 0.5 {
		add("time_clustering",
			fmt.Sprintf("%.0f%% of recent transactions fall in the %02d:00 hour", share*100, hour), 15)
	}

	// Geography contributes at most once, the higher of the two.
	if in.Country != "" && isHighRiskCountry(cfg.HighRiskCountries, in.Country) {
		add("high_risk_country",
			fmt.Sprintf("transaction originates from high-risk country %s", in.Country), 50)
	} else if in.Country == "" || !in.CountryKnown {
		if in.Request.Geo != nil {
			add("new_country", "transaction from a new or unknown country", 25)
		}
	}

	// Device
	if in.Request.Device != nil && isBotSignature(in.Request.Device.UserAgent) {
		add("bot_device", "device signature looks automated", 30)
	} else if in.Request.Device == nil || in.Request.Device.DeviceID == "" {
		add("unknown_device", "unrecognized device signature", 15)
	}

	// Behavioural deviation from the account's historical average.
	if in.AvgAmount > 0 && float64(in.Request.Amount) > in.AvgAmount*cfg.DeviationMultiplier {
		add("behavioral_deviation",
			fmt.Sprintf("amount deviates more than %.0fx from historical average", cfg.DeviationMultiplier), 20)
	}

	// Learned pattern match: the request's signature must appear in
	// enough recent transactions before a stored pattern fires.
	if in.Patterns != nil {
		sig := domain.TxSignature(in.Request.Type, in.Request.Amount)
		if p := in.Patterns.Get(sig); p != nil {
			matches := 0
			for _, tx := range in.Recent24h {
				if domain.TxSignature(tx.Type, tx.Amount) == sig {
					matches++
				}
			}
			if matches >= cfg.PatternMatchMin {
				add("pattern_match",
					fmt.Sprintf("%d recent transactions match learned pattern %s", matches, sig), p.Weight)
			}
		}
	}

	if in.Flagged {
		add("flagged_account", "account is in the suspicious set", 10)
	}

	if assessment.Score > domain.ScoreMax {
		assessment.Score = domain.ScoreMax
	}
	assessment.Level = domain.LevelForScore(assessment.Score)
	assessment.Action = recommendAction(assessment)
	return assessment
}

// recommendAction maps the assessment onto the action the processor
// honors: critical blocks outright; high from an already-flagged account
// blocks into manual review, other high scores recommend review; the
// rest are allowed.
func recommendAction(a *domain.FraudAssessment) domain.RecommendedAction {
	switch a.Level {
	case domain.RiskCritical:
		return domain.ActionBlock
	case domain.RiskHigh:
		for _, f := range a.Factors {
			if f.Factor == "flagged_account" {
				return domain.ActionBlock
			}
		}
		return domain.ActionReview
	default:
		return domain.ActionAllow
	}
}

func isHighRiskCountry(list []string, country string) bool {
	for _, c := range list {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

var botMarkers = []string{"bot", "curl", "wget", "python", "headless", "phantom", "scrape"}

func isBotSignature(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return false
	}
	for _, marker := range botMarkers {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}

// medianGap returns the median interval between the account's recent
// transactions. Needs at least 5 records to say anything.
func medianGap(txs []*domain.Transaction) (time.Duration, bool) {
	if len(txs) < 5 {
		return 0, false
	}
	gaps := make([]time.Duration, 0, len(txs)-1)
	for i := 1; i < len(txs); i++ {
		gaps = append(gaps, txs[i].CreatedAt.Sub(txs[i-1].CreatedAt))
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	return gaps[len(gaps)/2], true
}

// hourClustering returns the share of the sample falling into the most
// loaded hour-of-day bucket. Requires a sample of at least 10.
func hourClustering(txs []*domain.Transaction) (float64, int, bool) {
	if len(txs) < 10 {
		return 0, 0, false
	}
	var buckets [24]int
	for _, tx := range txs {
		buckets[tx.CreatedAt.UTC().Hour()]++
	}
	maxHour, maxCount := 0, 0
	for h, n := range buckets {
		if n > maxCount {
			maxHour, maxCount = h, n
		}
	}
	return float64(maxCount) / float64(len(txs)), maxHour, true
}
