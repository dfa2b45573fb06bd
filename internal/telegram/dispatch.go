package telegram

import (
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// queueSize bounds how many updates one chat may have waiting.
const queueSize = 32

// Dispatcher runs updates for different chats concurrently while keeping
// each chat's updates in arrival order. A chat's worker exits after idle
// time without updates and is started again on the next one.
type Dispatcher struct {
	handle func(tgbotapi.Update)
	idle   time.Duration

	mu     sync.Mutex
	queues map[int64]*chatQueue
	closed bool
	wg     sync.WaitGroup
}

type chatQueue struct {
	ch      chan tgbotapi.Update
	pending int // queued or about to be queued; guarded by Dispatcher.mu
}

// NewDispatcher creates a Dispatcher calling handle for every update.
func NewDispatcher(handle func(tgbotapi.Update), idle time.Duration) *Dispatcher {
	if idle <= 0 {
		idle = time.Minute
	}
	return &Dispatcher{
		handle: handle,
		idle:   idle,
		queues: make(map[int64]*chatQueue),
	}
}

// Dispatch queues upd behind earlier updates of the same chat. It blocks
// only when that chat's queue is full. Dispatch and Close must be called
// from the same goroutine.
func (d *Dispatcher) Dispatch(upd tgbotapi.Update) {
	id := updateChatID(upd)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	q, ok := d.queues[id]
	if !ok {
		q = &chatQueue{ch: make(chan tgbotapi.Update, queueSize)}
		d.queues[id] = q
		d.wg.Add(1)
		go d.run(id, q)
	}
	q.pending++
	d.mu.Unlock()

	q.ch <- upd
}

func (d *Dispatcher) run(id int64, q *chatQueue) {
	defer d.wg.Done()
	timer := time.NewTimer(d.idle)
	defer timer.Stop()

	for {
		select {
		case upd, ok := <-q.ch:
			if !ok {
				return
			}
			d.handle(upd)
			d.mu.Lock()
			q.pending--
			d.mu.Unlock()
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d.idle)

		case <-timer.C:
			d.mu.Lock()
			if q.pending == 0 && !d.closed {
				delete(d.queues, id)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			timer.Reset(d.idle)
		}
	}
}

// Close stops accepting updates and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, q := range d.queues {
			close(q.ch)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Workers returns the number of chats with a live worker.
func (d *Dispatcher) Workers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// updateChatID picks the chat an update belongs to; 0 groups the rest.
func updateChatID(upd tgbotapi.Update) int64 {
	switch {
	case upd.Message != nil && upd.Message.Chat != nil:
		return upd.Message.Chat.ID
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil && upd.CallbackQuery.Message.Chat != nil:
		return upd.CallbackQuery.Message.Chat.ID
	default:
		return 0
	}
}
