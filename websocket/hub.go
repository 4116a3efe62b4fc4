package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Message WebSocket消息格式
type Message struct {
	Type    string      `json:"type"`    // 消息类型
	PollID  uint        `json:"poll_id"` // 投票ID
	Payload interface{} `json:"payload"` // 消息内容
}

// Client 代表一个WebSocket连接客户端
type Client struct {
	// 订阅的投票ID
	PollID uint

	// WebSocket连接
	conn *websocket.Conn

	// 消息发送通道
	send chan []byte
}

// Hub 维护活跃的客户端集合并按投票分组广播消息
type Hub struct {
	// 已注册的客户端，按投票ID分组
	clients map[uint]map[*Client]bool

	// 注册请求
	register chan *Client

	// 注销请求
	unregister chan *Client

	// 互斥锁保护clients map
	mu sync.RWMutex
}

// NewHub 创建一个新的Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run 启动Hub消息处理循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.clients[client.PollID]; !ok {
				h.clients[client.PollID] = make(map[*Client]bool)
			}
			h.clients[client.PollID][client] = true
			h.mu.Unlock()
			log.Printf("客户端已订阅投票 %d 的实时结果", client.PollID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.PollID]; ok {
				if _, ok := h.clients[client.PollID][client]; ok {
					delete(h.clients[client.PollID], client)
					close(client.send)
					if len(h.clients[client.PollID]) == 0 {
						delete(h.clients, client.PollID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("客户端已取消订阅投票 %d", client.PollID)
		}
	}
}

// BroadcastToPoll 向订阅了指定投票的所有客户端广播消息
func (h *Hub) BroadcastToPoll(pollID uint, message *Message) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("序列化WebSocket消息失败: %v", err)
		return
	}

	h.mu.RLock()
	clients := h.clients[pollID]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.send <- payload:
		default:
			// 客户端发送缓冲区已满，断开连接
			h.mu.Lock()
			delete(h.clients[pollID], client)
			close(client.send)
			if len(h.clients[pollID]) == 0 {
				delete(h.clients, pollID)
			}
			h.mu.Unlock()
		}
	}
}

// RegisterClient 注册客户端到Hub
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient 从Hub中注销客户端
func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}
