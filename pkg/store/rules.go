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

	"github.com/DataDog/alarm-engine/pkg/alarm"
)

// SaveRule inserts or replaces a rule. The stored created_at of an existing
// row survives the replace; updated_at is stamped on every save.
func (s *Store) SaveRule(ctx context.Context, rule *alarm.Rule) error {
	now := s.clock.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	data, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("encoding rule %s: %w", rule.RuleID, err)
	}

	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO alarm_rules (rule_id, device_id, rule_data, enabled, created_at, updated_at)
			VALUES (?, ?, ?, ?, COALESCE((SELECT created_at FROM alarm_rules WHERE rule_id = ?), ?), ?)`,
			rule.RuleID, rule.DeviceID, string(data), boolToInt(rule.Enabled),
			rule.RuleID, timeToUnix(rule.CreatedAt), timeToUnix(rule.UpdatedAt))
		return err
	})
}

// GetRule returns the rule with the given id, or ErrNotFound.
func (s *Store) GetRule(ctx context.Context, ruleID string) (*alarm.Rule, error) {
	var rule *alarm.Rule
	err := s.withRetry(ctx, func() error {
		var data string
		err := s.db.QueryRowContext(ctx,
			"SELECT rule_data FROM alarm_rules WHERE rule_id = ?", ruleID).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		rule, err = decodeRule(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// ListRules returns rules ordered by id. A non-empty deviceID restricts the
// result to that device; enabledOnly drops disabled rules.
func (s *Store) ListRules(ctx context.Context, deviceID string, enabledOnly bool) ([]*alarm.Rule, error) {
	query := "SELECT rule_data FROM alarm_rules"
	var args []interface{}
	switch {
	case deviceID != "" && enabledOnly:
		query += " WHERE device_id = ? AND enabled = 1"
		args = append(args, deviceID)
	case deviceID != "":
		query += " WHERE device_id = ?"
		args = append(args, deviceID)
	case enabledOnly:
		query += " WHERE enabled = 1"
	}
	query += " ORDER BY rule_id"

	var rules []*alarm.Rule
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		rules = rules[:0]
		for rows.Next() {
			var data string
			if err := rows.Scan(&data); err != nil {
				return err
			}
			rule, err := decodeRule(data)
			if err != nil {
				return err
			}
			rules = append(rules, rule)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// DeleteRule removes a rule and its violation state in one transaction, so a
// deleted rule can never leave an orphaned state behind. Returns ErrNotFound
// when no such rule exists.
func (s *Store) DeleteRule(ctx context.Context, ruleID string) error {
	var deleted int64
	err := s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, "DELETE FROM alarm_states WHERE rule_id = ?", ruleID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM alarm_rules WHERE rule_id = ?", ruleID)
		if err != nil {
			return err
		}
		if deleted, err = res.RowsAffected(); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeRule(data string) (*alarm.Rule, error) {
	rule := &alarm.Rule{}
	if err := json.Unmarshal([]byte(data), rule); err != nil {
		return nil, fmt.Errorf("decoding rule: %w", err)
	}
	return rule, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
