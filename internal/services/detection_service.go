package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sharpline/sharpline-go/internal/config"
	"github.com/sharpline/sharpline-go/internal/models"
)

// DetectionService periodically runs the three opportunity detectors over
// the recent movement window of each active game. Passes share no mutable
// state; every opportunity carries a natural key, so a re-run or an
// overlapping replay inserts nothing twice.
type DetectionService struct {
	db        Querier
	cfg       config.DetectionConfig
	rlm       *RLMDetector
	steam     *SteamDetector
	arbitrage *ArbitrageDetector
	logger    *logrus.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	lastPass  time.Time
	found     int
}

func NewDetectionService(db Querier, cfg config.DetectionConfig, rlm *RLMDetector, steam *SteamDetector, arbitrage *ArbitrageDetector, logger *logrus.Logger) *DetectionService {
	ctx, cancel := context.WithCancel(context.Background())
	return &DetectionService{
		db:        db,
		cfg:       cfg,
		rlm:       rlm,
		steam:     steam,
		arbitrage: arbitrage,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins the periodic detection loop.
func (s *DetectionService) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("Detection service is disabled in configuration")
		return nil
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("detection service is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"interval_seconds": s.cfg.IntervalSeconds,
		"window_minutes":   s.cfg.WindowMinutes,
	}).Info("Starting detection service")

	s.wg.Add(1)
	go s.detectionLoop()
	return nil
}

// Stop gracefully shuts down the detection loop. Opportunities committed by
// earlier passes stay committed.
func (s *DetectionService) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	s.logger.Info("Stopping detection service")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Detection service stopped")
}

// IsRunning reports whether the loop is active.
func (s *DetectionService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *DetectionService) detectionLoop() {
	defer s.wg.Done()

	if err := s.RunPass(s.ctx); err != nil {
		s.logger.WithError(err).Error("Initial detection pass failed")
	}

	interval := time.Duration(s.cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunPass(s.ctx); err != nil {
				s.logger.WithError(err).Error("Detection pass failed")
			}
		}
	}
}

// RunPass executes one detection pass over every game with recent movement.
func (s *DetectionService) RunPass(ctx context.Context) error {
	started := time.Now()
	window := s.cfg.Window()
	if window <= 0 {
		window = 30 * time.Minute
	}
	// Deterministic window start keeps opportunity natural keys stable
	// across re-runs inside the same window.
	windowStart := started.UTC().Truncate(window)

	gameIDs, err := s.activeGameIDs(ctx, started.Add(-window))
	if err != nil {
		return fmt.Errorf("failed to list active games: %w", err)
	}

	total := 0
	for _, gameID := range gameIDs {
		count, err := s.processGame(ctx, gameID, windowStart, started.Add(-window))
		if err != nil {
			s.logger.WithError(err).WithField("game_id", gameID).Error("Detection failed for game")
			continue
		}
		total += count
	}

	s.mu.Lock()
	s.lastPass = time.Now()
	s.found = total
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"games":         len(gameIDs),
		"opportunities": total,
		"duration_ms":   time.Since(started).Milliseconds(),
	}).Info("Detection pass completed")
	return nil
}

func (s *DetectionService) processGame(ctx context.Context, gameID string, windowStart, since time.Time) (int, error) {
	movements, err := s.fetchMovements(ctx, gameID, since)
	if err != nil {
		return 0, err
	}
	splits, err := s.fetchSplits(ctx, gameID)
	if err != nil {
		return 0, err
	}
	latest, err := s.fetchLatestMoneylineQuotes(ctx, gameID)
	if err != nil {
		return 0, err
	}

	reportID := uuid.New().String()

	rlms := s.rlm.Evaluate(movements, splits, windowStart, reportID)
	steams := s.steam.Evaluate(movements, windowStart, reportID)
	arbs := s.arbitrage.Evaluate(latest, windowStart, reportID)

	if err := s.storeRLM(ctx, rlms); err != nil {
		return 0, err
	}
	if err := s.storeSteam(ctx, steams); err != nil {
		return 0, err
	}
	if err := s.storeArbitrage(ctx, arbs); err != nil {
		return 0, err
	}

	return len(rlms) + len(steams) + len(arbs), nil
}

func (s *DetectionService) activeGameIDs(ctx context.Context, since time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT game_id
		FROM movement_records
		WHERE observed_at >= $1
		ORDER BY game_id
	`

	rows, err := s.db.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *DetectionService) fetchMovements(ctx context.Context, gameID string, since time.Time) ([]models.MovementRecord, error) {
	query := `
		SELECT id, quote_id, prev_quote_id, game_id, book_id, market, side,
			prev_odds, curr_odds, corrected_delta, raw_delta, filtered_delta,
			line_value_delta, line_value_changed, elapsed_seconds,
			quality_score, movement_type, timing_bucket, observed_at, created_at
		FROM movement_records
		WHERE game_id = $1 AND observed_at >= $2
		ORDER BY observed_at ASC
	`

	rows, err := s.db.Query(ctx, query, gameID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MovementRecord
	for rows.Next() {
		var m models.MovementRecord
		if err := rows.Scan(
			&m.ID, &m.QuoteID, &m.PrevQuoteID, &m.GameID, &m.BookID, &m.Market, &m.Side,
			&m.PrevOdds, &m.CurrOdds, &m.CorrectedDelta, &m.RawDelta, &m.FilteredDelta,
			&m.LineValueDelta, &m.LineValueChanged, &m.ElapsedSeconds,
			&m.QualityScore, &m.MovementType, &m.TimingBucket, &m.ObservedAt, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *DetectionService) fetchSplits(ctx context.Context, gameID string) ([]models.BettingSplit, error) {
	query := `
		SELECT game_id, market, side, bet_percent, handle_percent, recorded_at
		FROM betting_splits
		WHERE game_id = $1
		ORDER BY recorded_at ASC
	`

	rows, err := s.db.Query(ctx, query, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BettingSplit
	for rows.Next() {
		var sp models.BettingSplit
		if err := rows.Scan(&sp.GameID, &sp.Market, &sp.Side, &sp.BetPercent, &sp.HandlePercent, &sp.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *DetectionService) fetchLatestMoneylineQuotes(ctx context.Context, gameID string) ([]models.Quote, error) {
	query := `
		SELECT DISTINCT ON (book_id, side)
			id, game_id, book_id, book_name, market, side, odds, line_value,
			observed_at, ingested_at, status
		FROM quotes
		WHERE game_id = $1 AND market = 'moneyline'
		ORDER BY book_id, side, observed_at DESC
	`

	rows, err := s.db.Query(ctx, query, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Quote
	for rows.Next() {
		var q models.Quote
		if err := rows.Scan(
			&q.ID, &q.GameID, &q.BookID, &q.BookName, &q.Market, &q.Side,
			&q.Odds, &q.LineValue, &q.ObservedAt, &q.IngestedAt, &q.Status,
		); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *DetectionService) storeRLM(ctx context.Context, opps []models.RLMOpportunity) error {
	if len(opps) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO rlm_opportunities (
			id, natural_key, report_id, game_id, book_id, market, side,
			movement_id, line_direction, public_direction, public_percent,
			corrected_delta, strength, window_start, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (natural_key) DO NOTHING
	`
	for _, o := range opps {
		if _, err := tx.Exec(ctx, query,
			o.ID, o.NaturalKey(), o.ReportID, o.GameID, o.BookID, o.Market, o.Side,
			o.MovementID, o.LineDirection, o.PublicDirection, o.PublicPercent,
			o.CorrectedDelta, o.Strength, o.WindowStart, o.DetectedAt,
		); err != nil {
			return fmt.Errorf("failed to insert RLM opportunity: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *DetectionService) storeSteam(ctx context.Context, moves []models.SteamMove) error {
	if len(moves) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO steam_moves (
			id, natural_key, report_id, game_id, market, side, direction,
			participating_books, divergent_books, average_movement,
			consensus_strength, window_start, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (natural_key) DO NOTHING
	`
	for _, m := range moves {
		if _, err := tx.Exec(ctx, query,
			m.ID, m.NaturalKey(), m.ReportID, m.GameID, m.Market, m.Side, m.Direction,
			m.ParticipatingBooks, m.DivergentBooks, m.AverageMovement,
			m.ConsensusStrength, m.WindowStart, m.DetectedAt,
		); err != nil {
			return fmt.Errorf("failed to insert steam move: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *DetectionService) storeArbitrage(ctx context.Context, opps []models.ArbitrageOpportunity) error {
	if len(opps) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO arbitrage_opportunities (
			id, natural_key, report_id, game_id, market, book_a, side_a, odds_a,
			book_b, side_b, odds_b, combined_implied, profit_percent,
			window_start, detected_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (natural_key) DO NOTHING
	`
	for _, a := range opps {
		if _, err := tx.Exec(ctx, query,
			a.ID, a.NaturalKey(), a.ReportID, a.GameID, a.Market, a.BookA, a.SideA, a.OddsA,
			a.BookB, a.SideB, a.OddsB, a.CombinedImplied, a.ProfitPercent,
			a.WindowStart, a.DetectedAt, a.ExpiresAt,
		); err != nil {
			return fmt.Errorf("failed to insert arbitrage opportunity: %w", err)
		}
	}
	return tx.Commit(ctx)
}
