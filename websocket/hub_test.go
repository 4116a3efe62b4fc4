package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastToPoll(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client1 := &Client{PollID: 1, send: make(chan []byte, 4)}
	client2 := &Client{PollID: 2, send: make(chan []byte, 4)}
	hub.RegisterClient(client1)
	hub.RegisterClient(client2)

	// 等待注册完成
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToPoll(1, &Message{
		Type:    "results_update",
		PollID:  1,
		Payload: map[string]int{"total": 3},
	})

	select {
	case data := <-client1.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "results_update", msg.Type)
		assert.Equal(t, uint(1), msg.PollID)
	case <-time.After(time.Second):
		t.Fatal("subscribed client did not receive broadcast")
	}

	// 订阅其他投票的客户端不应收到消息
	select {
	case <-client2.send:
		t.Fatal("client subscribed to another poll received broadcast")
	default:
	}

	hub.UnregisterClient(client1)
	hub.UnregisterClient(client2)
}

func TestHubEvictsSlowClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// 缓冲区容量为0的客户端模拟永远不读取的慢连接
	slow := &Client{PollID: 1, send: make(chan []byte)}
	hub.RegisterClient(slow)

	// 等待注册完成
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToPoll(1, &Message{Type: "results_update", PollID: 1})

	// 慢客户端被剔除，发送通道被关闭
	select {
	case _, ok := <-slow.send:
		assert.False(t, ok, "evicted client's send channel must be closed")
	case <-time.After(time.Second):
		t.Fatal("slow client was not evicted")
	}
}
