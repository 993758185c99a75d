package match

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Session binds an ephemeral socket connection to a logical player.
type Session struct {
	UserId   int64
	Name     string
	SocketId string
}

// Registry owns the socket-to-player mapping for the lifetime of each
// connection. Other components look sessions up, never mutate them.
type Registry struct {
	mu       sync.RWMutex
	bySocket map[string]*Session
	byUser   map[int64]string
}

func NewRegistry() *Registry {
	return &Registry{
		bySocket: make(map[string]*Session),
		byUser:   make(map[int64]string),
	}
}

// Bind registers the player behind a socket. A user reconnecting on a new
// socket displaces their previous binding.
func (r *Registry) Bind(socketId string, userId int64, name string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[userId]; ok && old != socketId {
		delete(r.bySocket, old)
		log.Infof("user %d rebound from socket %s to %s", userId, old, socketId)
	}

	sess := &Session{UserId: userId, Name: name, SocketId: socketId}
	r.bySocket[socketId] = sess
	r.byUser[userId] = socketId
	return sess
}

func (r *Registry) Unbind(socketId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.bySocket[socketId]
	if !ok {
		return
	}
	delete(r.bySocket, socketId)
	if r.byUser[sess.UserId] == socketId {
		delete(r.byUser, sess.UserId)
	}
}

func (r *Registry) Session(socketId string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.bySocket[socketId]
	if !ok {
		return nil
	}
	cp := *sess
	return &cp
}

func (r *Registry) ByUser(userId int64) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	socketId, ok := r.byUser[userId]
	if !ok {
		return nil
	}
	sess := r.bySocket[socketId]
	if sess == nil {
		return nil
	}
	cp := *sess
	return &cp
}
