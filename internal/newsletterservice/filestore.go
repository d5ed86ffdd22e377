package newsletterservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sushihentaime/devlog/internal/common"
)

// FileStore keeps every signup record in one JSON array file. All access
// goes through a single mutex, so one FileStore must own the file.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// load reads every record. A missing file is an empty store.
func (s *FileStore) load() ([]SignupRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []SignupRecord{}, nil
		}
		return nil, fmt.Errorf("could not read newsletter store: %w", err)
	}

	var records []SignupRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}

	for i := range records {
		v := common.NewValidator()
		validateStored(v, &records[i])
		if !v.Valid() {
			return nil, fmt.Errorf("%w: record %d: %v", ErrCorruptStore, i, v.ValidationError())
		}
	}

	return records, nil
}

// save replaces the file by renaming a fully written temp file over it.
func (s *FileStore) save(records []SignupRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create newsletter store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("could not save newsletter store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("could not save newsletter store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("could not save newsletter store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not save newsletter store: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("could not save newsletter store: %w", err)
	}

	return nil
}

func (s *FileStore) FindByEmail(ctx context.Context, email string) (*SignupRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	email = common.NormalizeEmail(email)
	for i := range records {
		if common.NormalizeEmail(records[i].Email) == email {
			return records[i].clone(), nil
		}
	}

	return nil, ErrRecordNotFound
}

func (s *FileStore) FindByToken(ctx context.Context, token string, kind TokenKind) (*SignupRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	for i := range records {
		if records[i].token(kind) == token {
			return records[i].clone(), nil
		}
	}

	return nil, ErrRecordNotFound
}

// UpsertSignup merges patch into the record for email, creating a pending
// record with fresh tokens when there is none.
func (s *FileStore) UpsertSignup(ctx context.Context, email string, patch SignupPatch) (*SignupRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	email = common.NormalizeEmail(email)

	for i := range records {
		if common.NormalizeEmail(records[i].Email) != email {
			continue
		}

		merged := records[i]
		patch.apply(&merged)
		merged.Email = email
		if err := checkRecord(&merged); err != nil {
			return nil, err
		}
		records[i] = merged

		if err := s.save(records); err != nil {
			return nil, err
		}
		return records[i].clone(), nil
	}

	r := newRecord(email, patch, s.now())
	if err := checkRecord(&r); err != nil {
		return nil, err
	}
	records = append(records, r)

	if err := s.save(records); err != nil {
		return nil, err
	}

	return r.clone(), nil
}

// UpdateStatusByToken sets the status of the record holding token. An unknown
// token leaves the store untouched and returns ErrRecordNotFound.
func (s *FileStore) UpdateStatusByToken(ctx context.Context, token string, kind TokenKind, status Status) (*SignupRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	for i := range records {
		if records[i].token(kind) != token {
			continue
		}

		records[i].setStatus(status, s.now())

		if err := s.save(records); err != nil {
			return nil, err
		}
		return records[i].clone(), nil
	}

	return nil, ErrRecordNotFound
}

// List returns the records with the given status, or all records when status
// is empty, in insertion order.
func (s *FileStore) List(ctx context.Context, status Status) ([]SignupRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	out := []SignupRecord{}
	for i := range records {
		if status == "" || records[i].Status == status {
			out = append(out, *records[i].clone())
		}
	}

	return out, nil
}
