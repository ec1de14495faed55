// Package parallel provides concurrency utilities for running several
// independent solving jobs side by side: a bounded worker pool and a
// merger that funnels the model streams of concurrent jobs into one
// ordered output channel.
package parallel

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Pool runs submitted jobs on a fixed number of goroutines. It provides
// controlled concurrency so that solving many programs at once does not
// spawn an unbounded number of portfolio workers.
type Pool struct {
	maxWorkers   int
	taskChan     chan func()
	workerWg     sync.WaitGroup
	shutdownChan chan struct{}
	mu           sync.Mutex
	closed       bool
}

// NewPool creates a pool with the specified number of workers. If
// maxWorkers is 0 or negative, it defaults to the number of CPU cores.
func NewPool(maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}

	pool := &Pool{
		maxWorkers:   maxWorkers,
		taskChan:     make(chan func(), maxWorkers*2),
		shutdownChan: make(chan struct{}),
	}

	for i := 0; i < maxWorkers; i++ {
		pool.workerWg.Add(1)
		go pool.worker()
	}

	return pool
}

func (p *Pool) worker() {
	defer p.workerWg.Done()

	for {
		select {
		case task := <-p.taskChan:
			if task != nil {
				task()
			}
		case <-p.shutdownChan:
			return
		}
	}
}

// Submit hands a job to the pool. If every worker is busy and the queue is
// full, Submit blocks until a slot frees up or the context is cancelled.
// Submitting to a stopped pool returns ErrPoolShutdown.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPoolShutdown
	}
	select {
	case p.taskChan <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.shutdownChan:
		return ErrPoolShutdown
	}
}

// Shutdown stops the pool, waiting for the jobs already running to finish.
// Queued jobs that no worker has picked up are dropped. The task channel is
// never closed, so a Submit racing with Shutdown returns ErrPoolShutdown or
// enqueues harmlessly instead of panicking.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.shutdownChan)
	p.workerWg.Wait()
}

// ErrPoolShutdown is returned when submitting to a stopped pool.
var ErrPoolShutdown = fmt.Errorf("worker pool has been shutdown")

// Message is one item of solving output attributed to its source, so
// interleaved results from concurrent jobs stay distinguishable.
type Message struct {
	// Source names the job that produced the message, typically the
	// program file being solved.
	Source string

	// Text is the rendered payload, one model or status line.
	Text string
}

// Merger combines the output streams of several solving jobs into a single
// channel while keeping every stream live: no job's output is held back
// until another finishes.
type Merger struct {
	outputChan chan Message
	doneChan   chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	closed     bool
}

// NewMerger creates an empty merger.
func NewMerger() *Merger {
	return &Merger{
		outputChan: make(chan Message),
		doneChan:   make(chan struct{}),
	}
}

// AddStream registers an input stream. The merger forwards its messages to
// the output until the stream is closed.
func (m *Merger) AddStream(inputChan <-chan Message) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		for {
			select {
			case item, ok := <-inputChan:
				if !ok {
					return
				}

				select {
				case m.outputChan <- item:
				case <-m.doneChan:
					return
				}

			case <-m.doneChan:
				return
			}
		}
	}()
}

// Output returns the channel carrying the merged messages. It is closed
// after Close has been called and every input stream has drained.
func (m *Merger) Output() <-chan Message {
	return m.outputChan
}

// Close shuts the merger down. Safe to call more than once.
func (m *Merger) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.closed = true
	close(m.doneChan)

	go func() {
		m.wg.Wait()
		close(m.outputChan)
	}()
}
