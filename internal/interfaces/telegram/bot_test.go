package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetkool/concierge/internal/interfaces/adapter"
)

type fakeAPI struct {
	mu      sync.Mutex
	batches [][]Update
	offsets []int64
	sent    map[int64][]string
	failFor int
}

func (f *fakeAPI) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]Update, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	if f.failFor > 0 {
		f.failFor--
		f.mu.Unlock()
		return nil, errors.New("connection reset")
	}
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return batch, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeAPI) SendMessage(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = map[int64][]string{}
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

func (f *fakeAPI) SetWebhook(context.Context, string, string) error { return nil }
func (f *fakeAPI) DeleteWebhook(context.Context) error              { return nil }

type capturingDispatcher struct {
	mu       sync.Mutex
	messages []adapter.Inbound
	wg       *sync.WaitGroup
}

func (d *capturingDispatcher) Dispatch(msg adapter.Inbound, reply adapter.ReplyFunc) error {
	d.mu.Lock()
	d.messages = append(d.messages, msg)
	d.mu.Unlock()
	err := reply(context.Background(), "echo:"+msg.Text)
	if d.wg != nil {
		d.wg.Done()
	}
	return err
}

func TestHandleUpdate(t *testing.T) {
	api := &fakeAPI{}
	dispatcher := &capturingDispatcher{}
	bot := NewBot(api, dispatcher, time.Second, zerolog.Nop())

	require.NoError(t, bot.HandleUpdate(Update{UpdateID: 1, Message: &Message{
		Chat: Chat{ID: 100},
		From: &User{ID: 7, FirstName: "Анна", LastName: "Петрова"},
		Text: "/start",
	}}))
	require.NoError(t, bot.HandleUpdate(Update{UpdateID: 2}))

	require.Len(t, dispatcher.messages, 1)
	msg := dispatcher.messages[0]
	assert.Equal(t, "telegram", msg.Transport)
	assert.Equal(t, "7", msg.UserID)
	assert.Equal(t, "Анна Петрова", msg.DisplayName)
	assert.Equal(t, []string{"echo:/start"}, api.sent[100])
}

func TestHandleUpdateWithoutSenderUsesChat(t *testing.T) {
	dispatcher := &capturingDispatcher{}
	bot := NewBot(&fakeAPI{}, dispatcher, time.Second, zerolog.Nop())

	require.NoError(t, bot.HandleUpdate(Update{Message: &Message{Chat: Chat{ID: -500}, Text: "hi"}}))
	assert.Equal(t, "-500", dispatcher.messages[0].UserID)
}

func TestPollAdvancesOffsetAndRecovers(t *testing.T) {
	api := &fakeAPI{
		failFor: 1,
		batches: [][]Update{
			{
				{UpdateID: 41, Message: &Message{Chat: Chat{ID: 1}, From: &User{ID: 1}, Text: "a"}},
				{UpdateID: 42, Message: &Message{Chat: Chat{ID: 1}, From: &User{ID: 1}, Text: "b"}},
			},
			{
				{UpdateID: 43, Message: &Message{Chat: Chat{ID: 2}, From: &User{ID: 2}, Text: "c"}},
			},
		},
	}
	var wg sync.WaitGroup
	wg.Add(3)
	dispatcher := &capturingDispatcher{wg: &wg}
	bot := NewBot(api, dispatcher, time.Second, zerolog.Nop())
	bot.retryBackoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Poll(ctx) }()

	wg.Wait()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not stop")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	require.GreaterOrEqual(t, len(api.offsets), 3)
	assert.Equal(t, []int64{0, 0, 43}, api.offsets[:3])
	assert.Equal(t, []string{"echo:a", "echo:b"}, api.sent[1])
	assert.Equal(t, []string{"echo:c"}, api.sent[2])
}
