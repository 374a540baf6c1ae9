// Package sse fans submission progress out to Server-Sent Events clients.
package sse

import (
	"encoding/json"
	"sync"

	"github.com/debemdeboas/kable/internal/submission"
)

// clientBuffer bounds how far a slow client may fall behind before events
// are dropped for it.
const clientBuffer = 16

type Client struct {
	Msg chan string
	// SubmissionKey filters events; empty receives every submission.
	SubmissionKey string
}

func NewClient(submissionKey string) *Client {
	return &Client{Msg: make(chan string, clientBuffer), SubmissionKey: submissionKey}
}

type Clients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewClients() *Clients {
	return &Clients{
		clients: make(map[*Client]bool),
	}
}

func (s *Clients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *Clients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[client] {
		delete(s.clients, client)
		close(client.Msg)
	}
}

func (s *Clients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends msg to every client watching key. Full clients miss it.
func (s *Clients) Broadcast(key, msg string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.SubmissionKey == "" || client.SubmissionKey == key {
			select {
			case client.Msg <- msg:
			default:
			}
		}
	}
}

// Publish broadcasts a submission event as JSON. It has the signature of
// the orchestrator's progress hook.
func (s *Clients) Publish(ev submission.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.Broadcast(ev.SubmissionKey, string(data))
}
