// Package blob stores uploaded file bytes in a bbolt database keyed by file id.
//
// Each blob is a nested bucket under "blobs" whose keys are the big-endian
// offsets of the chunks it was uploaded in, so an append writes only the new
// chunk and a reader walks the chunks in key order.
package blob

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"

	"github.com/dkeye/voicechat/internal/domain"
)

var bucketBlobs = []byte("blobs")

func chunkKey(offset int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(offset))
	return k
}

func keyOffset(k []byte) int64 { return int64(binary.BigEndian.Uint64(k)) }

// size is the offset of the last chunk plus its length.
func size(b *bbolt.Bucket) int64 {
	k, v := b.Cursor().Last()
	if k == nil {
		return 0
	}
	return keyOffset(k) + int64(len(v))
}

type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("error creating blob dir: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("error opening blob store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating bucket: %w", err)
	}
	log.Info().Str("module", "storage.blob").Str("path", path).Msg("blob store ready")
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Create(ctx context.Context, id domain.FileID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketBlobs)
		if root.Bucket([]byte(id)) != nil {
			return domain.Conflict("blob exists")
		}
		_, err := root.CreateBucket([]byte(id))
		return err
	})
}

func (s *Store) Append(ctx context.Context, id domain.FileID, offset int64, chunk []byte) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBlobs).Bucket([]byte(id))
		if b == nil {
			return domain.NotFound("blob not found")
		}
		n = size(b)
		if n != offset {
			return domain.Conflict(fmt.Sprintf("offset mismatch: have %d", n))
		}
		if len(chunk) == 0 {
			return nil
		}
		if err := b.Put(chunkKey(offset), chunk); err != nil {
			return err
		}
		n += int64(len(chunk))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Put replaces the blob with data, creating it when missing.
func (s *Store) Put(ctx context.Context, id domain.FileID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketBlobs)
		if root.Bucket([]byte(id)) != nil {
			if err := root.DeleteBucket([]byte(id)); err != nil {
				return err
			}
		}
		b, err := root.CreateBucket([]byte(id))
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return nil
		}
		return b.Put(chunkKey(0), data)
	})
}

// Open returns a reader over the blob. Each chunk is copied out in its own
// read transaction, so a slow reader never pins the database.
func (s *Store) Open(ctx context.Context, id domain.FileID) (io.ReadCloser, error) {
	if _, err := s.Size(ctx, id); err != nil {
		return nil, err
	}
	return &chunkReader{ctx: ctx, db: s.db, id: []byte(id)}, nil
}

func (s *Store) Size(ctx context.Context, id domain.FileID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBlobs).Bucket([]byte(id))
		if b == nil {
			return domain.NotFound("blob not found")
		}
		n = size(b)
		return nil
	})
	return n, err
}

func (s *Store) Delete(ctx context.Context, id domain.FileID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketBlobs)
		if root.Bucket([]byte(id)) == nil {
			return nil
		}
		return root.DeleteBucket([]byte(id))
	})
}

type chunkReader struct {
	ctx  context.Context
	db   *bbolt.DB
	id   []byte
	next int64
	buf  []byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		if err := r.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *chunkReader) fill() error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	return r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBlobs).Bucket(r.id)
		if b == nil {
			return domain.NotFound("blob not found")
		}
		k, v := b.Cursor().Seek(chunkKey(r.next))
		if k == nil {
			return io.EOF
		}
		if keyOffset(k) != r.next {
			return fmt.Errorf("blob %s: no chunk at offset %d", r.id, r.next)
		}
		r.buf = append(r.buf[:0], v...)
		r.next += int64(len(v))
		return nil
	})
}

func (r *chunkReader) Close() error { return nil }
