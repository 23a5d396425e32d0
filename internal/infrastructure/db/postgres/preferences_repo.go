package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arkade-os/txeditor/internal/core/domain"
)

const (
	selectPreferences = `
SELECT fee_level, depth_level, fee_per_kb, dynamic_fees, mempool_fees, show_tx_io,
    show_tx_fee_details, show_tx_locktime, show_tx_preview_button, updated_at
FROM preferences WHERE id = 1`

	upsertPreferences = `
INSERT INTO preferences (
    id, fee_level, depth_level, fee_per_kb, dynamic_fees, mempool_fees, show_tx_io,
    show_tx_fee_details, show_tx_locktime, show_tx_preview_button, updated_at
) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT(id) DO UPDATE SET
    fee_level = excluded.fee_level,
    depth_level = excluded.depth_level,
    fee_per_kb = excluded.fee_per_kb,
    dynamic_fees = excluded.dynamic_fees,
    mempool_fees = excluded.mempool_fees,
    show_tx_io = excluded.show_tx_io,
    show_tx_fee_details = excluded.show_tx_fee_details,
    show_tx_locktime = excluded.show_tx_locktime,
    show_tx_preview_button = excluded.show_tx_preview_button,
    updated_at = excluded.updated_at`

	deletePreferences = `DELETE FROM preferences`
)

type preferencesRepository struct {
	db *sql.DB
}

func NewPreferencesRepository(config ...interface{}) (domain.PreferencesRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config: expected 1 argument, got %d", len(config))
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf(
			"cannot open preferences repository: expected *sql.DB but got %T", config[0],
		)
	}

	return &preferencesRepository{db}, nil
}

func (r *preferencesRepository) Get(ctx context.Context) (*domain.Preferences, error) {
	var (
		prefs     domain.Preferences
		updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, selectPreferences).Scan(
		&prefs.FeeLevel, &prefs.DepthLevel, &prefs.FeePerKb, &prefs.DynamicFees,
		&prefs.MempoolFees, &prefs.ShowTxIO, &prefs.ShowTxFeeDetails, &prefs.ShowTxLockTime,
		&prefs.ShowTxPreviewButton, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	prefs.UpdatedAt = time.Unix(updatedAt, 0)

	return &prefs, nil
}

func (r *preferencesRepository) Upsert(ctx context.Context, prefs domain.Preferences) error {
	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx, upsertPreferences,
			prefs.FeeLevel, prefs.DepthLevel, prefs.FeePerKb, prefs.DynamicFees,
			prefs.MempoolFees, prefs.ShowTxIO, prefs.ShowTxFeeDetails, prefs.ShowTxLockTime,
			prefs.ShowTxPreviewButton, prefs.UpdatedAt.Unix(),
		)
		return err
	})
}

func (r *preferencesRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, deletePreferences)
	return err
}

func (r *preferencesRepository) Close() {
	// nolint:all
	r.db.Close()
}
