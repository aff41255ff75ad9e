package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/pders01/chronicle/internal/gateway"
)

var (
	sessionBucket  = []byte("session")
	draftsBucket   = []byte("drafts")
	articlesBucket = []byte("articles")

	sessionKey = []byte("current")
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// Error wraps a failure of the underlying database. It is surfaced to the
// caller as is; nothing here retries.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Store struct {
	db *bolt.DB

	mu       sync.Mutex
	watchers map[chan int]struct{}
}

func NewStore(dbPath string) (*Store, error) {
	return NewStoreWithTimeout(dbPath, 1*time.Second)
}

// NewStoreWithTimeout opens dbPath, waiting up to timeout for the file lock.
func NewStoreWithTimeout(dbPath string, timeout time.Duration) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{sessionBucket, draftsBucket, articlesBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db, watchers: make(map[chan int]struct{})}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	for ch := range s.watchers {
		delete(s.watchers, ch)
		close(ch)
	}
	s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) session() (Session, error) {
	sess := Session{UserID: NoUser}
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(sessionBucket).Get(sessionKey)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &sess)
	})
	if err != nil {
		return Session{UserID: NoUser}, &Error{Op: "reading session", Err: err}
	}
	return sess, nil
}

func (s *Store) putSession(sess Session) error {
	sess.UpdatedAt = time.Now()
	err := s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		return tx.Bucket(sessionBucket).Put(sessionKey, data)
	})
	if err != nil {
		return &Error{Op: "saving session", Err: err}
	}
	s.notify(sess.UserID)
	return nil
}

// SaveUserID stores id as the current user and keeps any token.
func (s *Store) SaveUserID(id int) error {
	sess, err := s.session()
	if err != nil {
		return err
	}
	if sess.UserID != id {
		sess.Token = ""
	}
	sess.UserID = id
	return s.putSession(sess)
}

// SaveSession stores the logged-in user and its bearer token.
func (s *Store) SaveSession(userID int, token string) error {
	return s.putSession(Session{UserID: userID, Token: token})
}

// UserID returns the current user id, or NoUser.
func (s *Store) UserID() (int, error) {
	sess, err := s.session()
	return sess.UserID, err
}

// Token returns the bearer token of the current session, or "".
func (s *Store) Token() (string, error) {
	sess, err := s.session()
	return sess.Token, err
}

// ClearSession logs out: the user id returns to NoUser and the token is dropped.
func (s *Store) ClearSession() error {
	return s.putSession(Session{UserID: NoUser})
}

// WatchUserID emits the current user id immediately and then every change,
// until ctx is done or the store is closed. A slow reader only ever sees
// the newest value.
func (s *Store) WatchUserID(ctx context.Context) (<-chan int, error) {
	current, err := s.UserID()
	if err != nil {
		return nil, err
	}

	ch := make(chan int, 1)
	ch <- current

	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[ch]; ok {
			delete(s.watchers, ch)
			close(ch)
		}
	}()

	return ch, nil
}

func (s *Store) notify(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- id:
		default:
			// drop the stale value, keep the newest
			select {
			case <-ch:
			default:
			}
			ch <- id
		}
	}
}

// SaveDraft upserts rec under rec.Key.
func (s *Store) SaveDraft(rec *DraftRecord) error {
	if rec.Key == "" {
		return fmt.Errorf("draft key is required")
	}
	rec.SavedAt = time.Now()
	err := s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(draftsBucket).Put([]byte(rec.Key), data)
	})
	if err != nil {
		return &Error{Op: "saving draft", Err: err}
	}
	return nil
}

func (s *Store) LoadDraft(key string) (*DraftRecord, error) {
	var rec DraftRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(draftsBucket).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("draft %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, &Error{Op: "loading draft", Err: err}
	}
	return &rec, nil
}

func (s *Store) DeleteDraft(key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(draftsBucket).Delete([]byte(key))
	})
	if err != nil {
		return &Error{Op: "deleting draft", Err: err}
	}
	return nil
}

// ListDrafts returns every autosaved draft, most recently saved first.
func (s *Store) ListDrafts() ([]*DraftRecord, error) {
	var drafts []*DraftRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(draftsBucket).ForEach(func(_ []byte, v []byte) error {
			var rec DraftRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			drafts = append(drafts, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, &Error{Op: "listing drafts", Err: err}
	}
	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].SavedAt.After(drafts[j].SavedAt)
	})
	return drafts, nil
}

func itob(v int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// CacheArticles stores copies of articles keyed by id, replacing older copies.
func (s *Store) CacheArticles(articles []gateway.Article) error {
	if len(articles) == 0 {
		return nil
	}
	now := time.Now()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(articlesBucket)
		for _, a := range articles {
			data, err := json.Marshal(CachedArticle{Article: a, CachedAt: now})
			if err != nil {
				return err
			}
			if err := b.Put(itob(a.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &Error{Op: "caching articles", Err: err}
	}
	return nil
}

func (s *Store) CachedArticle(id int) (*gateway.Article, error) {
	var cached CachedArticle
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(articlesBucket).Get(itob(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &cached)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("article %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, &Error{Op: "reading cached article", Err: err}
	}
	return &cached.Article, nil
}

// CachedArticles returns every cached article, newest id first.
func (s *Store) CachedArticles() ([]gateway.Article, error) {
	var articles []gateway.Article
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(articlesBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var cached CachedArticle
			if err := json.Unmarshal(v, &cached); err != nil {
				continue
			}
			articles = append(articles, cached.Article)
		}
		return nil
	})
	if err != nil {
		return nil, &Error{Op: "reading cached articles", Err: err}
	}
	return articles, nil
}

// ForgetArticle drops an article from the cache, e.g. after deletion.
func (s *Store) ForgetArticle(id int) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(articlesBucket).Delete(itob(id))
	})
	if err != nil {
		return &Error{Op: "forgetting article", Err: err}
	}
	return nil
}
