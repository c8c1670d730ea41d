package notifications

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// pushServer принимает одно соединение, проверяет admin_online и шлёт
// подготовленные события
func pushServer(t *testing.T, events []string, gotAdmin chan<- string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var online struct {
			Type    string `json:"type"`
			Payload struct {
				Username string `json:"username"`
			} `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&online))
		require.Equal(t, "admin_online", online.Type)
		gotAdmin <- online.Payload.Username

		for _, event := range events {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(event)))
		}
		// держим соединение, пока клиент не отключится
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestPushListenerPublishesTicketEvents(t *testing.T) {
	f := newTestCenter(t, nil)
	gotAdmin := make(chan string, 1)
	srv := pushServer(t, []string{
		`{"type":"ping","payload":{}}`,
		`{"type":"new_ticket_notification","payload":{"title":"🎫 Nuevo Ticket Asignado","message":"Se te ha asignado el ticket: TK-42","ticket_id":"TK-42"}}`,
	}, gotAdmin)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := NewPushListener(wsURL(srv), "ana", f.center)
	go func() {
		_ = listener.Run(ctx)
	}()

	select {
	case admin := <-gotAdmin:
		assert.Equal(t, "ana", admin)
	case <-time.After(time.Second):
		t.Fatal("admin_online не получен")
	}

	// ping пропускается, событие тикета публикуется
	select {
	case n := <-f.center.in:
		assert.Equal(t, "TK-42", n.TicketID)
		assert.Equal(t, "🎫 Nuevo Ticket Asignado", n.Title)
	case <-time.After(time.Second):
		t.Fatal("уведомление не опубликовано")
	}
}

func TestPushListenerStopsOnContextCancel(t *testing.T) {
	f := newTestCenter(t, nil)
	gotAdmin := make(chan string, 1)
	srv := pushServer(t, nil, gotAdmin)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	listener := NewPushListener(wsURL(srv), "ana", f.center)

	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	<-gotAdmin
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("слушатель не завершился по отмене контекста")
	}
}

func TestPushListenerMalformedPayloadIgnored(t *testing.T) {
	f := newTestCenter(t, nil)
	gotAdmin := make(chan string, 1)
	srv := pushServer(t, []string{
		`{"type":"new_ticket_notification","payload":"no es un objeto"}`,
		`{"type":"new_ticket_notification","payload":{"title":"t","message":"m","ticket_id":"TK-1"}}`,
	}, gotAdmin)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = NewPushListener(wsURL(srv), "ana", f.center).Run(ctx) }()
	<-gotAdmin

	select {
	case n := <-f.center.in:
		assert.Equal(t, "TK-1", n.TicketID)
	case <-time.After(time.Second):
		t.Fatal("корректное событие не дошло")
	}
	assert.Empty(t, f.center.in)
}
