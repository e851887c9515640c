// Package blobstore archives uploaded clinical documents. It defines the
// Store interface, an in-memory implementation for tests and development,
// and an S3-compatible implementation.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrEmptyKey     = errors.New("object key is required")
	ErrObjectTooBig = errors.New("object exceeds maximum allowed size")
)

// MaxObjectSize caps a single archived object (20 MB).
const MaxObjectSize = 20 * 1024 * 1024

// Object describes a stored object.
type Object struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the contract for document archive backends.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (*Object, error)
	Get(ctx context.Context, key string) ([]byte, *Object, error)
	Delete(ctx context.Context, key string) error
}

// DocumentKey builds the archive key documents/<user>/<id>/<file name>.
// Directory components of fileName are dropped.
func DocumentKey(userID, id, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "document"
	}
	return path.Join("documents", userID, id, name)
}

func checkPut(key string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	if len(data) > MaxObjectSize {
		return ErrObjectTooBig
	}
	return nil
}

func hashOf(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

type storedObject struct {
	object  Object
	content []byte
}

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*storedObject
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*storedObject)}
}

// Put stores a copy of data under key, replacing any previous object.
func (s *MemoryStore) Put(_ context.Context, key, contentType string, data []byte) (*Object, error) {
	if err := checkPut(key, data); err != nil {
		return nil, err
	}

	obj := Object{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        hashOf(data),
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.objects[key] = &storedObject{object: obj, content: bytes.Clone(data)}
	s.mu.Unlock()

	out := obj
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, *Object, error) {
	s.mu.RLock()
	stored, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrNotFound
	}
	obj := stored.object
	return bytes.Clone(stored.content), &obj, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

// List returns the objects whose key starts with prefix, sorted by key.
func (s *MemoryStore) List(prefix string) []Object {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Object
	for key, stored := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, stored.object)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
