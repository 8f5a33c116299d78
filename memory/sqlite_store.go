package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BaSui01/boardflow/deliberation"
)

// decisionRow is the relational shape of an archived decision. The full
// decision is kept as a JSON payload; the indexed columns exist for filtering.
type decisionRow struct {
	SessionID  string    `gorm:"primaryKey;column:session_id"`
	ProposalID string    `gorm:"column:proposal_id;index"`
	Outcome    string    `gorm:"column:outcome;index"`
	Flag       string    `gorm:"column:flag"`
	FinalScore float64   `gorm:"column:final_score"`
	RoundCount int       `gorm:"column:round_count"`
	DecidedAt  time.Time `gorm:"column:decided_at;index"`
	Payload    []byte    `gorm:"column:payload"`
}

// TableName implements the gorm table naming convention.
func (decisionRow) TableName() string { return "decisions" }

// SQLiteDecisionStore is a gorm/SQLite DecisionStore for single-node
// deployments with durable history.
type SQLiteDecisionStore struct {
	db *gorm.DB
}

// NewSQLiteDecisionStore opens (or creates) the database file and migrates
// the schema. Pass ":memory:" for an ephemeral store.
func NewSQLiteDecisionStore(path string) (*SQLiteDecisionStore, error) {
	if path == "" {
		path = "boardflow.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&decisionRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate decision schema: %w", err)
	}
	return &SQLiteDecisionStore{db: db}, nil
}

func toRow(d *deliberation.Decision) (*decisionRow, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal decision: %w", err)
	}
	return &decisionRow{
		SessionID:  d.SessionID,
		ProposalID: d.ProposalID,
		Outcome:    string(d.Outcome),
		Flag:       d.Flag,
		FinalScore: d.FinalMetric.Score,
		RoundCount: len(d.Rounds),
		DecidedAt:  d.DecidedAt,
		Payload:    payload,
	}, nil
}

func fromRow(row *decisionRow) (*deliberation.Decision, error) {
	var decision deliberation.Decision
	if err := json.Unmarshal(row.Payload, &decision); err != nil {
		return nil, err
	}
	return &decision, nil
}

// Save implements DecisionStore. Re-saving a session overwrites its row.
func (s *SQLiteDecisionStore) Save(ctx context.Context, decision *deliberation.Decision) error {
	row, err := toRow(decision)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(row).Error
}

// Get implements DecisionStore.
func (s *SQLiteDecisionStore) Get(ctx context.Context, sessionID string) (*deliberation.Decision, error) {
	var row decisionRow
	err := s.db.WithContext(ctx).First(&row, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errNotFound(sessionID)
	}
	if err != nil {
		return nil, err
	}
	return fromRow(&row)
}

// List implements DecisionStore.
func (s *SQLiteDecisionStore) List(ctx context.Context, filter DecisionFilter) ([]*deliberation.Decision, error) {
	query := s.db.WithContext(ctx).Model(&decisionRow{}).Order("decided_at DESC")

	if filter.ProposalID != "" {
		query = query.Where("proposal_id = ?", filter.ProposalID)
	}
	if filter.Outcome != "" {
		query = query.Where("outcome = ?", string(filter.Outcome))
	}
	if filter.DecidedAfter != nil {
		query = query.Where("decided_at >= ?", *filter.DecidedAfter)
	}
	if filter.DecidedBefore != nil {
		query = query.Where("decided_at <= ?", *filter.DecidedBefore)
	}
	if filter.Offset > 0 {
		// SQLite requires a LIMIT clause with OFFSET; -1 means unbounded.
		if filter.Limit <= 0 {
			query = query.Limit(-1)
		}
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []decisionRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]*deliberation.Decision, 0, len(rows))
	for i := range rows {
		decision, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		result = append(result, decision)
	}
	return result, nil
}

// Delete implements DecisionStore.
func (s *SQLiteDecisionStore) Delete(ctx context.Context, sessionID string) error {
	result := s.db.WithContext(ctx).Delete(&decisionRow{}, "session_id = ?", sessionID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errNotFound(sessionID)
	}
	return nil
}

// Ping implements DecisionStore.
func (s *SQLiteDecisionStore) Ping(ctx context.Context) error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close implements DecisionStore.
func (s *SQLiteDecisionStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

var _ DecisionStore = (*SQLiteDecisionStore)(nil)
