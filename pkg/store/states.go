// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DataDog/alarm-engine/pkg/alarm"
	"github.com/DataDog/alarm-engine/pkg/util/log"
)

// SaveState inserts or replaces the violation state of a rule.
func (s *Store) SaveState(ctx context.Context, state *alarm.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state %s: %w", state.RuleID, err)
	}
	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO alarm_states (rule_id, device_id, state_data, updated_at)
			VALUES (?, ?, ?, ?)`,
			state.RuleID, state.DeviceID, string(data), timeToUnix(state.UpdatedAt))
		return err
	})
}

// GetState returns the violation state of a rule, or ErrNotFound.
func (s *Store) GetState(ctx context.Context, ruleID string) (*alarm.State, error) {
	var state *alarm.State
	err := s.withRetry(ctx, func() error {
		var data string
		err := s.db.QueryRowContext(ctx,
			"SELECT state_data FROM alarm_states WHERE rule_id = ?", ruleID).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		state, err = decodeState(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// ListStates returns every violation state, ordered by rule id.
func (s *Store) ListStates(ctx context.Context) ([]*alarm.State, error) {
	var states []*alarm.State
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			"SELECT state_data FROM alarm_states ORDER BY rule_id")
		if err != nil {
			return err
		}
		defer rows.Close()

		states = states[:0]
		for rows.Next() {
			var data string
			if err := rows.Scan(&data); err != nil {
				return err
			}
			state, err := decodeState(data)
			if err != nil {
				return err
			}
			states = append(states, state)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

// SaveStateAndHistory commits a state update and its alarm history record in
// a single transaction. A fired alarm is therefore either fully recorded or
// not recorded at all, never half of each. The record's Seq is filled in from
// the inserted row.
func (s *Store) SaveStateAndHistory(ctx context.Context, state *alarm.State, rec *alarm.HistoryRecord) error {
	stateData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state %s: %w", state.RuleID, err)
	}
	alarmData, err := json.Marshal(rec.Alarm)
	if err != nil {
		return fmt.Errorf("encoding alarm payload %s: %w", rec.RuleID, err)
	}

	return s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO alarm_states (rule_id, device_id, state_data, updated_at)
			VALUES (?, ?, ?, ?)`,
			state.RuleID, state.DeviceID, string(stateData), timeToUnix(state.UpdatedAt)); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO alarm_history (rule_id, device_id, alarm_data, timestamp)
			VALUES (?, ?, ?, ?)`,
			rec.RuleID, rec.DeviceID, string(alarmData), timeToUnix(rec.Timestamp))
		if err != nil {
			return err
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		rec.Seq = seq
		return nil
	})
}

// ListHistory returns the alarm history of a rule in firing order.
func (s *Store) ListHistory(ctx context.Context, ruleID string) ([]*alarm.HistoryRecord, error) {
	var recs []*alarm.HistoryRecord
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT seq, rule_id, device_id, alarm_data, timestamp
			FROM alarm_history WHERE rule_id = ? ORDER BY seq`, ruleID)
		if err != nil {
			return err
		}
		defer rows.Close()

		recs = recs[:0]
		for rows.Next() {
			rec := &alarm.HistoryRecord{}
			var data string
			var ts float64
			if err := rows.Scan(&rec.Seq, &rec.RuleID, &rec.DeviceID, &data, &ts); err != nil {
				return err
			}
			if err := json.Unmarshal([]byte(data), &rec.Alarm); err != nil {
				return fmt.Errorf("decoding alarm payload: %w", err)
			}
			rec.Timestamp = unixToTime(ts)
			recs = append(recs, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// PruneHistory deletes history records older than retentionDays and returns
// how many were removed.
func (s *Store) PruneHistory(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := s.clock.Now().AddDate(0, 0, -retentionDays)
	var deleted int64
	err := s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			"DELETE FROM alarm_history WHERE timestamp < ?", timeToUnix(cutoff))
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Infof("Pruned %d alarm history records older than %d days", deleted, retentionDays)
	}
	return deleted, nil
}

func decodeState(data string) (*alarm.State, error) {
	state := &alarm.State{}
	if err := json.Unmarshal([]byte(data), state); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	return state, nil
}

func unixToTime(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second))).UTC()
}
