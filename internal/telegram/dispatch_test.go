package telegram

import (
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func chatText(chatID int64, s string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: s}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcher_KeepsChatOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	d := NewDispatcher(func(upd tgbotapi.Update) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		got = append(got, upd.Message.Text)
		mu.Unlock()
	}, time.Minute)

	want := []string{"a", "b", "c", "d", "e"}
	for _, s := range want {
		d.Dispatch(chatText(1, s))
	}
	d.Close()

	if len(got) != len(want) {
		t.Fatalf("want %d handled, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want order %v, got %v", want, got)
		}
	}
}

func TestDispatcher_SlowChatDoesNotBlockOthers(t *testing.T) {
	release := make(chan struct{})
	fast := make(chan struct{})
	d := NewDispatcher(func(upd tgbotapi.Update) {
		if upd.Message.Chat.ID == 1 {
			<-release
			return
		}
		close(fast)
	}, time.Minute)

	d.Dispatch(chatText(1, "slow"))
	d.Dispatch(chatText(2, "fast"))

	select {
	case <-fast:
	case <-time.After(2 * time.Second):
		t.Fatalf("chat 2 waited for chat 1")
	}
	close(release)
	d.Close()
}

func TestDispatcher_IdleWorkerExits(t *testing.T) {
	var (
		mu sync.Mutex
		n  int
	)
	d := NewDispatcher(func(tgbotapi.Update) {
		mu.Lock()
		n++
		mu.Unlock()
	}, 20*time.Millisecond)

	d.Dispatch(chatText(1, "x"))
	waitFor(t, func() bool { return d.Workers() == 0 })

	// A new update after the worker left starts a fresh one.
	d.Dispatch(chatText(1, "y"))
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	if n != 2 {
		t.Fatalf("want 2 handled, got %d", n)
	}
}

func TestDispatcher_DropsAfterClose(t *testing.T) {
	called := false
	d := NewDispatcher(func(tgbotapi.Update) { called = true }, time.Minute)
	d.Close()
	d.Dispatch(chatText(1, "late"))
	if called || d.Workers() != 0 {
		t.Fatalf("closed dispatcher must ignore updates")
	}
}

func TestUpdateChatID(t *testing.T) {
	if id := updateChatID(chatText(7, "x")); id != 7 {
		t.Fatalf("want 7, got %d", id)
	}
	cb := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 9}}}}
	if id := updateChatID(cb); id != 9 {
		t.Fatalf("want 9, got %d", id)
	}
	if id := updateChatID(tgbotapi.Update{}); id != 0 {
		t.Fatalf("want 0, got %d", id)
	}
}
