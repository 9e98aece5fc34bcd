package broadcast

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func newChannel() *Channel {
	logger := zap.NewNop()
	return NewChannel(NewStorage(), NewHub(logger), nil, logger)
}

type inquiry struct {
	ID   string                 `json:"id"`
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

func TestPublishSkipsOrigin(t *testing.T) {
	ch := newChannel()

	var tabA, tabB, tabC []Message
	ch.Subscribe(KeyContactInquiries, "tab-a", func(m Message) { tabA = append(tabA, m) })
	ch.Subscribe(KeyContactInquiries, "tab-b", func(m Message) { tabB = append(tabB, m) })
	ch.Subscribe(KeyPopupConfig, "tab-c", func(m Message) { tabC = append(tabC, m) })

	value := []inquiry{{ID: "1", Type: "contact", Data: map[string]interface{}{"name": "Jana"}}}
	if err := ch.Publish(context.Background(), "tab-a", KeyContactInquiries, value); err != nil {
		t.Fatal(err)
	}

	if len(tabA) != 0 {
		t.Fatal("publisher received its own message")
	}
	if len(tabC) != 0 {
		t.Fatal("subscriber of another key notified")
	}
	if len(tabB) != 1 {
		t.Fatalf("expected one delivery, got %d", len(tabB))
	}

	var got []inquiry
	if err := json.Unmarshal(tabB[0].Value, &got); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, value) {
		t.Fatalf("value changed in transit: %+v", got)
	}
	if tabB[0].Origin != "tab-a" {
		t.Fatalf("unexpected origin %q", tabB[0].Origin)
	}
}

func TestLastWriteWins(t *testing.T) {
	ch := newChannel()
	ctx := context.Background()
	ch.Publish(ctx, "tab-a", KeyPopupConfig, map[string]interface{}{"title": "Sommer"})
	ch.Publish(ctx, "tab-b", KeyPopupConfig, map[string]interface{}{"title": "Winter"})

	raw, ok := ch.Get(KeyPopupConfig)
	if !ok {
		t.Fatal("value missing")
	}
	if string(raw) != `{"title":"Winter"}` {
		t.Fatalf("unexpected value %s", raw)
	}
}

func TestUnsubscribe(t *testing.T) {
	ch := newChannel()
	calls := 0
	unsubscribe := ch.Subscribe(KeyMotorInquiries, "tab-b", func(Message) { calls++ })
	ch.Publish(context.Background(), "tab-a", KeyMotorInquiries, []int{1})
	unsubscribe()
	ch.Publish(context.Background(), "tab-a", KeyMotorInquiries, []int{2})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestReconnectSurvivesStaleUnsubscribe(t *testing.T) {
	ch := newChannel()
	var old, fresh int
	unsubscribeOld := ch.Subscribe(KeyPopupConfig, "tab-1", func(Message) { old++ })
	unsubscribeFresh := ch.Subscribe(KeyPopupConfig, "tab-1", func(Message) { fresh++ })

	// the first connection of tab-1 closes after the tab reconnected
	unsubscribeOld()
	ch.Publish(context.Background(), "tab-2", KeyPopupConfig, map[string]bool{"active": true})
	if fresh != 1 || old != 0 {
		t.Fatalf("expected delivery to the reconnected tab only, got fresh=%d old=%d", fresh, old)
	}

	unsubscribeFresh()
	ch.Publish(context.Background(), "tab-2", KeyPopupConfig, map[string]bool{"active": false})
	if fresh != 1 {
		t.Fatalf("delivered after unsubscribe: %d", fresh)
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	ch := newChannel()
	delivered := false
	ch.Subscribe(KeyB2BRegistrations, "broken", func(Message) { panic("boom") })
	ch.Subscribe(KeyB2BRegistrations, "healthy", func(Message) { delivered = true })

	if err := ch.Publish(context.Background(), "tab-a", KeyB2BRegistrations, []string{}); err != nil {
		t.Fatal(err)
	}
	if !delivered {
		t.Fatal("healthy subscriber missed the message after a panic")
	}
}

func TestRawMessagePassesThrough(t *testing.T) {
	ch := newChannel()
	raw := json.RawMessage(`{"active":true}`)
	ch.Publish(context.Background(), "", KeyPopupConfig, raw)
	got, _ := ch.Get(KeyPopupConfig)
	if string(got) != string(raw) {
		t.Fatalf("raw value re-encoded: %s", got)
	}
}

func startNATS(t *testing.T) string {
	t.Helper()
	ns, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatalf("nats server: %v", err)
	}
	ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns.ClientURL()
}

func newInstance(t *testing.T, url string) *Channel {
	t.Helper()
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	t.Cleanup(nc.Close)

	logger := zap.NewNop()
	storage, hub := NewStorage(), NewHub(logger)
	bus, err := NewNATSBus(nc, storage, hub, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bus.Close() })
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}
	return NewChannel(storage, hub, bus, logger)
}

func TestNATSBusRelaysBetweenInstances(t *testing.T) {
	url := startNATS(t)
	first := newInstance(t, url)
	second := newInstance(t, url)

	got := make(chan Message, 2)
	second.Subscribe(KeyContactInquiries, "tab-b", func(m Message) { got <- m })
	// the publishing tab is attached to the second instance as well
	second.Subscribe(KeyContactInquiries, "tab-a", func(m Message) {
		t.Error("publisher received its own message through the bus")
	})

	if err := first.Publish(context.Background(), "tab-a", KeyContactInquiries, []string{"x"}); err != nil {
		t.Fatal(err)
	}

	select {
	case m := <-got:
		if string(m.Value) != `["x"]` || m.Origin != "tab-a" {
			t.Fatalf("unexpected message %+v", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not relayed")
	}

	if raw, ok := second.Get(KeyContactInquiries); !ok || string(raw) != `["x"]` {
		t.Fatalf("remote storage not updated: %s", raw)
	}
}
