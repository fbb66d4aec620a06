package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/mymmrac/telego"
)

type recorder struct {
	calls []Notification
	err   error
}

func (r *recorder) Notify(_ context.Context, _ int64, n Notification) error {
	r.calls = append(r.calls, n)
	return r.err
}

func TestMultiSwallowsChannelErrors(t *testing.T) {
	broken := &recorder{err: errors.New("boom")}
	ok := &recorder{}
	m := NewMulti(Channel{"broken", broken}, Channel{"nil", nil}, Channel{"ok", ok})

	err := m.Notify(context.Background(), 1, Notification{Type: TypeDealUpdate, Title: "t"})
	if err != nil {
		t.Fatalf("Multi must not return errors, got %v", err)
	}
	if len(broken.calls) != 1 || len(ok.calls) != 1 {
		t.Fatalf("every channel must be called: broken=%d ok=%d", len(broken.calls), len(ok.calls))
	}
	if ok.calls[0].Priority != PriorityMedium {
		t.Errorf("default priority = %q", ok.calls[0].Priority)
	}
}

type chats map[int64]int64

func (c chats) TelegramChatID(_ context.Context, userID int64) (int64, bool, error) {
	id, ok := c[userID]
	return id, ok, nil
}

type fakeSender struct {
	sent []*telego.SendMessageParams
}

func (f *fakeSender) SendMessage(_ context.Context, p *telego.SendMessageParams) (*telego.Message, error) {
	f.sent = append(f.sent, p)
	return &telego.Message{}, nil
}

func TestTelegramChannel(t *testing.T) {
	sender := &fakeSender{}
	tg := NewTelegram(sender, chats{1: 555})

	n := Notification{Title: "Сделка закрыта", Message: "Автозакрытие", Priority: PriorityUrgent}
	if err := tg.Notify(context.Background(), 1, n); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].ChatID.ID != 555 {
		t.Fatalf("unexpected sends %+v", sender.sent)
	}
	if sender.sent[0].Text != "❗️ Сделка закрыта\n\nАвтозакрытие" {
		t.Errorf("text = %q", sender.sent[0].Text)
	}

	if err := tg.Notify(context.Background(), 2, n); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("user without chat: got %v", err)
	}
}
