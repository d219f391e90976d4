// Package histstore persists submitted commands in a bbolt database.
package histstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"pkt.systems/pslog"
)

const bucketCmd = "cmd"

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("history store closed")

// Cmd is a stored command with its sequence number.
type Cmd struct {
	Seq  int
	Text string
}

// Store is a command history backed by bbolt. It is safe for concurrent use.
type Store struct {
	db     *bolt.DB
	logger pslog.Logger
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketCmd))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history: %w", err)
	}
	log := pslog.Ctx(ctx).With("history", path)
	log.Debug("history store opened")
	return &Store{db: db, logger: log}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// AddCmd appends a command and returns its sequence number.
func (s *Store) AddCmd(cmd string) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	var seq uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketCmd))
		var err error
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(marshalSeq(seq), []byte(cmd))
	})
	return int(seq), err
}

// Record implements console.HistoryRecorder.
func (s *Store) Record(ctx context.Context, cmd string) error {
	seq, err := s.AddCmd(cmd)
	if err != nil {
		return err
	}
	pslog.Ctx(ctx).Trace("history recorded", "seq", seq, "len", len(cmd))
	return nil
}

// Cmds returns up to limit of the newest commands, oldest first. A
// non-positive limit returns everything.
func (s *Store) Cmds(limit int) ([]Cmd, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	var cmds []Cmd
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketCmd)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(cmds) >= limit {
				break
			}
			cmds = append(cmds, Cmd{Seq: int(unmarshalSeq(k)), Text: string(v)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(cmds)-1; i < j; i, j = i+1, j-1 {
		cmds[i], cmds[j] = cmds[j], cmds[i]
	}
	return cmds, nil
}

// Texts returns the command texts of Cmds(limit).
func (s *Store) Texts(limit int) ([]string, error) {
	cmds, err := s.Cmds(limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(cmds))
	for i, cmd := range cmds {
		out[i] = cmd.Text
	}
	return out, nil
}

// Clear removes every command. Sequence numbers restart at one.
func (s *Store) Clear() error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketCmd)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketCmd))
		return err
	})
	if err == nil {
		s.logger.Info("history cleared")
	}
	return err
}

func marshalSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func unmarshalSeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}
