// Package chunkstore хранит части сессий загрузки на локальном диске.
//
// Раскладка каталога:
//
//	<root>/<session>/<session>.part<idx>  принятые части
//	<root>/.staging/<uuid>.tmp             части, которые ещё пишутся или проверяются
//
// Часть попадает в каталог сессии только через os.Rename из .staging, поэтому читатель
// никогда не видит недописанный файл части.
package chunkstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sir_venger/chunkline/internal/models"
)

const (
	stagingDirName   = ".staging"
	partSeparator    = ".part"
	stagingExtension = ".tmp"
)

// Store — дисковое хранилище частей.
type Store struct {
	root    string
	staging string
	codec   Codec
}

// SessionInfo описывает каталог сессии для housekeeping.
type SessionInfo struct {
	Name     string
	Chunks   int
	Bytes    int64
	Modified time.Time
}

// New создаёт хранилище в root и гарантирует наличие служебного каталога.
func New(root string, codec Codec) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("chunk store root is empty")
	}

	staging := filepath.Join(root, stagingDirName)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, models.StorageFault("create staging dir", err)
	}

	return &Store{root: root, staging: staging, codec: codec}, nil
}

// Root возвращает корневой каталог хранилища.
func (s *Store) Root() string { return s.root }

// SessionDir возвращает путь каталога сессии.
func (s *Store) SessionDir(session string) string {
	return filepath.Join(s.root, session)
}

// ChunkPath возвращает путь файла части.
func (s *Store) ChunkPath(session string, idx int) string {
	return filepath.Join(s.SessionDir(session), chunkFileName(session, idx))
}

func chunkFileName(session string, idx int) string {
	return session + partSeparator + strconv.Itoa(idx)
}

// parseChunkFileName извлекает индекс из имени вида <session>.part<idx>.
func parseChunkFileName(session, name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, session+partSeparator)
	if !ok || rest == "" || (len(rest) > 1 && rest[0] == '0') {
		return 0, false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// Exists сообщает, есть ли каталог сессии.
func (s *Store) Exists(session string) (bool, error) {
	fi, err := os.Stat(s.SessionDir(session))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, models.StorageFault("stat session", err)
	}
	return fi.IsDir(), nil
}

// List возвращает отсортированные индексы частей. Для отсутствующей сессии это пустой список,
// каталог при этом не создаётся.
func (s *Store) List(session string) ([]int, error) {
	entries, err := os.ReadDir(s.SessionDir(session))
	if errors.Is(err, fs.ErrNotExist) {
		return []int{}, nil
	}
	if err != nil {
		return nil, models.StorageFault("list session", err)
	}

	out := make([]int, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if idx, ok := parseChunkFileName(session, e.Name()); ok {
			out = append(out, idx)
		}
	}
	sort.Ints(out)

	return out, nil
}

// Open открывает часть на чтение уже в распакованном виде.
func (s *Store) Open(session string, idx int) (io.ReadCloser, error) {
	f, err := os.Open(s.ChunkPath(session, idx))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: session %q chunk %d", models.ErrNotFound, session, idx)
	}
	if err != nil {
		return nil, models.StorageFault("open chunk", err)
	}

	dec, err := decoder(f)
	if err != nil {
		_ = f.Close()
		return nil, models.StorageFault(fmt.Sprintf("decode chunk %d", idx), err)
	}

	return &chunkReader{ReadCloser: dec, file: f}, nil
}

type chunkReader struct {
	io.ReadCloser
	file *os.File
}

func (c *chunkReader) Close() error {
	return errors.Join(c.ReadCloser.Close(), c.file.Close())
}

// Remove удаляет каталог сессии целиком.
func (s *Store) Remove(session string) error {
	if err := os.RemoveAll(s.SessionDir(session)); err != nil {
		return models.StorageFault("remove session", err)
	}
	return nil
}

// Staged — часть, записанная в .staging, но ещё не перенесённая в сессию.
type Staged struct {
	store *Store
	path  string
	// Size: принятые байты до сжатия.
	Size int64
}

// Stage пишет поток во временный файл вне каталогов сессий. Ошибка чтения r удаляет файл.
func (s *Store) Stage(r io.Reader) (*Staged, error) {
	path := filepath.Join(s.staging, uuid.NewString()+stagingExtension)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, models.StorageFault("create staging file", err)
	}

	success := false
	defer func() {
		if !success {
			_ = f.Close()
			_ = os.Remove(path)
		}
	}()

	enc, err := s.codec.encoder(f)
	if err != nil {
		return nil, models.StorageFault("init chunk codec", err)
	}

	n, err := io.Copy(enc, r)
	if err != nil {
		// ошибка может прийти и от клиента (обрыв тела), и от диска
		var pe *fs.PathError
		if errors.As(err, &pe) {
			return nil, models.StorageFault("write staging file", err)
		}
		return nil, fmt.Errorf("read chunk payload: %w", err)
	}
	if err = enc.Close(); err != nil {
		return nil, models.StorageFault("flush chunk codec", err)
	}
	if err = f.Sync(); err != nil {
		return nil, models.StorageFault("sync staging file", err)
	}
	if err = f.Close(); err != nil {
		return nil, models.StorageFault("close staging file", err)
	}

	success = true
	return &Staged{store: s, path: path, Size: n}, nil
}

// Commit переносит часть в каталог сессии, создавая его при необходимости.
// Существующая часть с тем же индексом перезаписывается.
func (st *Staged) Commit(session string, idx int) error {
	if err := os.MkdirAll(st.store.SessionDir(session), 0o755); err != nil {
		st.Discard()
		return models.StorageFault("create session dir", err)
	}
	if err := os.Rename(st.path, st.store.ChunkPath(session, idx)); err != nil {
		st.Discard()
		return models.StorageFault("commit chunk", err)
	}
	return nil
}

// Discard удаляет временный файл.
func (st *Staged) Discard() {
	_ = os.Remove(st.path)
}

// Sessions перечисляет каталоги сессий. Время изменения берётся самое позднее среди частей.
func (s *Store) Sessions() ([]SessionInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, models.StorageFault("list sessions", err)
	}

	out := make([]SessionInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, ok, err := s.Stat(e.Name())
		if err != nil || !ok {
			continue
		}
		out = append(out, info)
	}

	return out, nil
}

// Stat читает сведения об одной сессии заново с диска. ok=false, если каталога нет.
func (s *Store) Stat(session string) (SessionInfo, bool, error) {
	dir := s.SessionDir(session)
	di, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return SessionInfo{}, false, nil
	}
	if err != nil {
		return SessionInfo{}, false, models.StorageFault("stat session", err)
	}
	if !di.IsDir() {
		return SessionInfo{}, false, nil
	}

	info := SessionInfo{Name: session, Modified: di.ModTime()}
	files, err := os.ReadDir(dir)
	if err != nil {
		return SessionInfo{}, false, models.StorageFault("list session", err)
	}
	for _, f := range files {
		fi, err := f.Info()
		if err != nil || fi.IsDir() {
			continue
		}
		if _, ok := parseChunkFileName(session, f.Name()); ok {
			info.Chunks++
		}
		info.Bytes += fi.Size()
		if fi.ModTime().After(info.Modified) {
			info.Modified = fi.ModTime()
		}
	}
	return info, true, nil
}

// SweepStaging удаляет временные файлы старше ttl, оставшиеся от оборванных загрузок.
func (s *Store) SweepStaging(ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(s.staging)
	if err != nil {
		return 0, models.StorageFault("list staging", err)
	}

	removed := 0
	now := time.Now()
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil || now.Sub(fi.ModTime()) < ttl {
			continue
		}
		if os.Remove(filepath.Join(s.staging, e.Name())) == nil {
			removed++
		}
	}

	return removed, nil
}

// TotalBytes суммирует размер всех файлов хранилища.
func (s *Store) TotalBytes() (int64, error) {
	var total int64
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, models.StorageFault("walk store", err)
	}
	return total, nil
}
