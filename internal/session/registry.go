// Package session ведёт реестр сессий загрузки: блокировки, проверки существования и
// удаление. Политика (кто и когда может менять сессию) живёт здесь, а не в путях на диске.
package session

import (
	"errors"
	"io"
	"sync"
)

// Backend это хранилище частей под реестром.
type Backend interface {
	Exists(session string) (bool, error)
	List(session string) ([]int, error)
	Open(session string, idx int) (io.ReadCloser, error)
	Remove(session string) error
}

// Staged — часть, готовая к атомарному переносу в сессию.
type Staged interface {
	Commit(session string, idx int) error
}

// ErrReadOnly возвращается при попытке удалить сессию под разделяемой блокировкой.
var ErrReadOnly = errors.New("session is held with a shared lock")

// Registry выдаёт блокировки по имени сессии. Записи частей и листинг идут под
// разделяемой блокировкой, слияние и отмена под эксклюзивной.
type Registry struct {
	backend Backend

	mu        sync.Mutex
	locks     map[string]*entry
	artifacts map[string]*entry
}

type entry struct {
	rw   sync.RWMutex
	refs int
}

// NewRegistry создаёт реестр поверх хранилища.
func NewRegistry(backend Backend) *Registry {
	return &Registry{
		backend:   backend,
		locks:     make(map[string]*entry),
		artifacts: make(map[string]*entry),
	}
}

func (r *Registry) acquire(name string) *entry {
	return r.acquireIn(r.locks, name)
}

func (r *Registry) acquireIn(m map[string]*entry, name string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := m[name]
	if !ok {
		e = &entry{}
		m[name] = e
	}
	e.refs++
	return e
}

// release убирает запись, когда на неё больше никто не ссылается.
func (r *Registry) release(name string, e *entry) {
	r.releaseIn(r.locks, name, e)
}

func (r *Registry) releaseIn(m map[string]*entry, name string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m, name)
	}
}

// Artifact эксклюзивно блокирует путь итогового файла: разные сессии с разными
// суффиксами могут собираться в один путь. Берётся после блокировки сессии.
func (r *Registry) Artifact(path string) (unlock func()) {
	e := r.acquireIn(r.artifacts, path)
	e.rw.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.rw.Unlock()
			r.releaseIn(r.artifacts, path, e)
		})
	}
}

// Shared берёт разделяемую блокировку сессии.
func (r *Registry) Shared(name string) *Session {
	e := r.acquire(name)
	e.rw.RLock()
	return &Session{Name: name, reg: r, e: e, exclusive: false}
}

// Exclusive берёт эксклюзивную блокировку сессии.
func (r *Registry) Exclusive(name string) *Session {
	e := r.acquire(name)
	e.rw.Lock()
	return &Session{Name: name, reg: r, e: e, exclusive: true}
}

// Held возвращает число сессий, по которым сейчас есть блокировки.
func (r *Registry) Held() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

// Session — заблокированная сессия. Release обязателен.
type Session struct {
	Name string

	reg       *Registry
	e         *entry
	exclusive bool
	once      sync.Once
}

// Exists сообщает, есть ли у сессии хотя бы каталог.
func (s *Session) Exists() (bool, error) {
	return s.reg.backend.Exists(s.Name)
}

// Chunks возвращает индексы частей по возрастанию.
func (s *Session) Chunks() ([]int, error) {
	return s.reg.backend.List(s.Name)
}

// Open открывает часть на чтение.
func (s *Session) Open(idx int) (io.ReadCloser, error) {
	return s.reg.backend.Open(s.Name, idx)
}

// Commit переносит подготовленную часть в сессию.
func (s *Session) Commit(st Staged, idx int) error {
	return st.Commit(s.Name, idx)
}

// Destroy удаляет сессию вместе со всеми частями. Требует эксклюзивной блокировки.
func (s *Session) Destroy() error {
	if !s.exclusive {
		return ErrReadOnly
	}
	return s.reg.backend.Remove(s.Name)
}

// Release снимает блокировку. Повторный вызов ничего не делает.
func (s *Session) Release() {
	s.once.Do(func() {
		if s.exclusive {
			s.e.rw.Unlock()
		} else {
			s.e.rw.RUnlock()
		}
		s.reg.release(s.Name, s.e)
	})
}
