package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"taxed-token-ledger/core/state"
)

// SaveState replaces the stored world state and metadata in one
// transaction. Zero balances are not written.
func (s *Store) SaveState(ctx context.Context, db *state.StateDB, meta map[string]string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"meta", "native_balances", "token_balances", "allowances", "slots"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for key, value := range meta {
		if _, err = tx.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("insert meta %s: %w", key, err)
		}
	}

	dump := db.Dump()
	for _, e := range dump.Native {
		if e.Amount.IsZero() {
			continue
		}
		if _, err = tx.ExecContext(ctx, "INSERT INTO native_balances (account, amount) VALUES (?, ?)",
			e.Account.Hex(), e.Amount.Dec()); err != nil {
			return fmt.Errorf("insert native balance: %w", err)
		}
	}
	for _, e := range dump.Tokens {
		if e.Amount.IsZero() {
			continue
		}
		if _, err = tx.ExecContext(ctx, "INSERT INTO token_balances (token, holder, amount) VALUES (?, ?, ?)",
			e.Token.Hex(), e.Holder.Hex(), e.Amount.Dec()); err != nil {
			return fmt.Errorf("insert token balance: %w", err)
		}
	}
	for _, e := range dump.Allowances {
		if e.Amount.IsZero() {
			continue
		}
		if _, err = tx.ExecContext(ctx, "INSERT INTO allowances (token, owner, spender, amount) VALUES (?, ?, ?, ?)",
			e.Token.Hex(), e.Owner.Hex(), e.Spender.Hex(), e.Amount.Dec()); err != nil {
			return fmt.Errorf("insert allowance: %w", err)
		}
	}
	for _, e := range dump.Slots {
		if _, err = tx.ExecContext(ctx, "INSERT INTO slots (contract, key, value) VALUES (?, ?, ?)",
			e.Contract.Hex(), e.Key, e.Value.Dec()); err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadState reads back what SaveState wrote. It returns ErrNotInitialized
// when nothing was saved yet.
func (s *Store) LoadState(ctx context.Context) (*state.StateDB, map[string]string, error) {
	meta, err := s.loadMeta(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(meta) == 0 {
		return nil, nil, ErrNotInitialized
	}

	dump := &state.Dump{}

	err = s.scan(ctx, "SELECT account, amount FROM native_balances", func(rows *sql.Rows) error {
		var account, amount string
		if err := rows.Scan(&account, &amount); err != nil {
			return err
		}
		v, err := parseAmount(amount)
		if err != nil {
			return err
		}
		dump.Native = append(dump.Native, state.NativeEntry{Account: common.HexToAddress(account), Amount: v})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	err = s.scan(ctx, "SELECT token, holder, amount FROM token_balances", func(rows *sql.Rows) error {
		var token, holder, amount string
		if err := rows.Scan(&token, &holder, &amount); err != nil {
			return err
		}
		v, err := parseAmount(amount)
		if err != nil {
			return err
		}
		dump.Tokens = append(dump.Tokens, state.TokenEntry{
			Token: common.HexToAddress(token), Holder: common.HexToAddress(holder), Amount: v,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	err = s.scan(ctx, "SELECT token, owner, spender, amount FROM allowances", func(rows *sql.Rows) error {
		var token, owner, spender, amount string
		if err := rows.Scan(&token, &owner, &spender, &amount); err != nil {
			return err
		}
		v, err := parseAmount(amount)
		if err != nil {
			return err
		}
		dump.Allowances = append(dump.Allowances, state.AllowanceEntry{
			Token: common.HexToAddress(token), Owner: common.HexToAddress(owner),
			Spender: common.HexToAddress(spender), Amount: v,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	err = s.scan(ctx, "SELECT contract, key, value FROM slots", func(rows *sql.Rows) error {
		var contract, key, value string
		if err := rows.Scan(&contract, &key, &value); err != nil {
			return err
		}
		v, err := parseAmount(value)
		if err != nil {
			return err
		}
		dump.Slots = append(dump.Slots, state.SlotEntry{Contract: common.HexToAddress(contract), Key: key, Value: v})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return state.FromDump(dump), meta, nil
}

func (s *Store) loadMeta(ctx context.Context) (map[string]string, error) {
	meta := make(map[string]string)
	err := s.scan(ctx, "SELECT key, value FROM meta", func(rows *sql.Rows) error {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		meta[key] = value
		return nil
	})
	return meta, err
}

func (s *Store) scan(ctx context.Context, query string, fn func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query %q: %w", query, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("stored amount %q: %w", s, err)
	}
	return v, nil
}
