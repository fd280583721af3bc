package pool

import (
	"io"
	"runtime"
	"sync"
)

// Pool represents a pool of workers, used for parallelizing CPU-bound functions
// such as prime search and batch encryption.
//
// Functions needing a *Pool work with a nil receiver, doing the equivalent
// work on the current goroutine instead.
//
// By creating a pool, you avoid the overhead of spinning up goroutines for
// each new operation.
type Pool struct {
	// The common channel used to hand jobs to the workers.
	jobs chan func()
	// This holds the number of workers we've created
	workerCount int
	closeOnce   sync.Once
}

// NewPool creates a new pool, with a certain number of workers.
//
// If count <= 0, this will use the number of available CPUs instead.
func NewPool(count int) *Pool {
	if count <= 0 {
		count = runtime.NumCPU()
	}
	p := &Pool{
		jobs:        make(chan func()),
		workerCount: count,
	}
	for i := 0; i < count; i++ {
		go func() {
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// Workers returns the number of workers, or 1 for a nil pool.
func (p *Pool) Workers() int {
	if p == nil {
		return 1
	}
	return p.workerCount
}

// TearDown stops the workers. The pool must not be used afterwards.
func (p *Pool) TearDown() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() { close(p.jobs) })
}

// searchState is shared by the workers of a single Search call.
type searchState struct {
	mu      sync.Mutex
	count   int
	results []interface{}
	err     error
}

func (s *searchState) done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err != nil || len(s.results) >= s.count
}

func (s *searchState) record(res interface{}, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.err != nil:
	case err != nil:
		s.err = err
	case res != nil && len(s.results) < s.count:
		s.results = append(s.results, res)
	}
}

func (s *searchState) run(f func() (interface{}, error)) {
	for !s.done() {
		s.record(f())
	}
}

// Search queries f until count successes are found, or until f fails.
//
// f is supposed to try a single candidate, returning nil, nil if that candidate
// isn't successful. A non-nil error stops the search on all workers, and is returned.
//
// The result will be a slice containing the first count successes.
func (p *Pool) Search(count int, f func() (interface{}, error)) ([]interface{}, error) {
	s := &searchState{count: count, results: make([]interface{}, 0, count)}
	if p == nil {
		s.run(f)
	} else {
		var wg sync.WaitGroup
		wg.Add(p.workerCount)
		for i := 0; i < p.workerCount; i++ {
			p.jobs <- func() {
				defer wg.Done()
				s.run(f)
			}
		}
		wg.Wait()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

// Parallelize calls a function count times, passing in indices from 0..count-1.
//
// The result will be a slice containing [f(0), f(1), ..., f(count - 1)].
// If any call fails, the error of the call with the smallest index is returned.
func (p *Pool) Parallelize(count int, f func(int) (interface{}, error)) ([]interface{}, error) {
	results := make([]interface{}, count)
	errs := make([]error, count)
	if p == nil {
		for i := 0; i < count; i++ {
			results[i], errs[i] = f(i)
		}
	} else {
		var wg sync.WaitGroup
		wg.Add(count)
		for i := 0; i < count; i++ {
			i := i
			p.jobs <- func() {
				defer wg.Done()
				results[i], errs[i] = f(i)
			}
		}
		wg.Wait()
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// LockedReader wraps an io.Reader to be safe for concurrent reads.
//
// Naturally, when reading concurrently, which caller gets which bytes is
// raced, but no two callers ever observe the same bytes.
type LockedReader struct {
	reader io.Reader
	m      sync.Mutex
}

// NewLockedReader creates a LockedReader by wrapping an underlying value.
func NewLockedReader(r io.Reader) *LockedReader {
	// Intentionally not initializing m, since the zero value is ok
	return &LockedReader{reader: r}
}

// Read implements io.Reader for LockedReader.
func (r *LockedReader) Read(p []byte) (int, error) {
	r.m.Lock()
	defer r.m.Unlock()
	return r.reader.Read(p)
}
