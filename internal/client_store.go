package internal

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

type DuplicateClientIdError struct {
	Id string
}

func (e *DuplicateClientIdError) Error() string {
	return fmt.Sprintf("Attempted to create client with duplicate ID %s", e.Id)
}

type MissingClientIdError struct {
	Id string
}

func (e *MissingClientIdError) Error() string {
	return fmt.Sprintf("Missing client with id=%s", e.Id)
}

type TooManyClientsError struct {
	MaxConnections int
}

func (e *TooManyClientsError) Error() string {
	return fmt.Sprintf("Too many clients are connected (max %d) - cannot create new client", e.MaxConnections)
}

type ClientConnectionMetadata struct {
	Mut         sync.RWMutex
	Name        string
	HasPosition bool
	X           float32
	Y           float32
	CreatedTime int64
	LastMsgTime int64
}

// ClientSnapshot is a copy of one client's metadata taken under its lock.
type ClientSnapshot struct {
	Id          string
	Name        string
	HasPosition bool
	X           float32
	Y           float32
	CreatedTime int64
}

type ClientStore struct {
	MaxConnections int

	textMessageCounter atomic.Uint64

	mut_clientConnections sync.RWMutex
	clientConnections     map[string]*ClientConnectionMetadata
}

func CreateClientStore(maxConnections int) *ClientStore {
	return &ClientStore{
		MaxConnections:        maxConnections,
		mut_clientConnections: sync.RWMutex{},
		clientConnections:     make(map[string]*ClientConnectionMetadata),
	}
}

// IncrementTextMessageCount bumps the server-wide text frame counter and
// returns the new value.
func (store *ClientStore) IncrementTextMessageCount() uint64 {
	return store.textMessageCounter.Add(1)
}

func (store *ClientStore) TextMessageCount() uint64 {
	return store.textMessageCounter.Load()
}

func (store *ClientStore) HasClient(clientId string) bool {
	store.mut_clientConnections.RLock()
	defer store.mut_clientConnections.RUnlock()

	_, has := store.clientConnections[clientId]
	return has
}

func (store *ClientStore) ClientCount() int {
	store.mut_clientConnections.RLock()
	defer store.mut_clientConnections.RUnlock()
	return len(store.clientConnections)
}

func (store *ClientStore) CreateClient(clientId string, name string, timestamp int64) error {
	store.mut_clientConnections.Lock()
	defer store.mut_clientConnections.Unlock()

	if _, has := store.clientConnections[clientId]; has {
		return &DuplicateClientIdError{Id: clientId}
	}

	if store.MaxConnections > 0 && len(store.clientConnections) >= store.MaxConnections {
		return &TooManyClientsError{MaxConnections: store.MaxConnections}
	}

	store.clientConnections[clientId] = &ClientConnectionMetadata{
		Mut:         sync.RWMutex{},
		Name:        name,
		CreatedTime: timestamp,
		LastMsgTime: timestamp,
	}

	return nil
}

func (store *ClientStore) RemoveClient(clientId string) {
	store.mut_clientConnections.Lock()
	defer store.mut_clientConnections.Unlock()
	delete(store.clientConnections, clientId)
}

func (store *ClientStore) SetPosition(clientId string, x, y float32, timestamp int64) error {
	store.mut_clientConnections.RLock()
	defer store.mut_clientConnections.RUnlock()

	connection, has := store.clientConnections[clientId]
	if !has {
		return &MissingClientIdError{Id: clientId}
	}

	connection.Mut.Lock()
	defer connection.Mut.Unlock()

	connection.HasPosition = true
	connection.X = x
	connection.Y = y
	connection.LastMsgTime = timestamp
	return nil
}

func (store *ClientStore) SetRecvTimestamp(clientId string, timestamp int64) error {
	store.mut_clientConnections.RLock()
	defer store.mut_clientConnections.RUnlock()

	connection, has := store.clientConnections[clientId]
	if !has {
		return &MissingClientIdError{Id: clientId}
	}

	connection.Mut.Lock()
	defer connection.Mut.Unlock()

	connection.LastMsgTime = timestamp
	return nil
}

func (store *ClientStore) GetClient(clientId string) (ClientSnapshot, error) {
	store.mut_clientConnections.RLock()
	defer store.mut_clientConnections.RUnlock()

	connection, has := store.clientConnections[clientId]
	if !has {
		return ClientSnapshot{}, &MissingClientIdError{Id: clientId}
	}

	return snapshot(clientId, connection), nil
}

// ListClients returns every client except excludeId, ordered by creation
// time and then id. Pass "" to list everyone.
func (store *ClientStore) ListClients(excludeId string) []ClientSnapshot {
	store.mut_clientConnections.RLock()
	defer store.mut_clientConnections.RUnlock()

	clients := make([]ClientSnapshot, 0, len(store.clientConnections))
	for clientId, connection := range store.clientConnections {
		if clientId == excludeId {
			continue
		}
		clients = append(clients, snapshot(clientId, connection))
	}

	sort.Slice(clients, func(i, j int) bool {
		if clients[i].CreatedTime != clients[j].CreatedTime {
			return clients[i].CreatedTime < clients[j].CreatedTime
		}
		return clients[i].Id < clients[j].Id
	})

	return clients
}

// GetIdleClientList returns clients whose last message is older than msgDeadline.
func (store *ClientStore) GetIdleClientList(msgDeadline int64) []string {
	store.mut_clientConnections.RLock()
	defer store.mut_clientConnections.RUnlock()

	idle := []string{}

	for clientId, connection := range store.clientConnections {
		connection.Mut.RLock()
		isIdle := connection.LastMsgTime < msgDeadline
		connection.Mut.RUnlock()

		if isIdle {
			idle = append(idle, clientId)
		}
	}

	return idle
}

func snapshot(clientId string, connection *ClientConnectionMetadata) ClientSnapshot {
	connection.Mut.RLock()
	defer connection.Mut.RUnlock()

	return ClientSnapshot{
		Id:          clientId,
		Name:        connection.Name,
		HasPosition: connection.HasPosition,
		X:           connection.X,
		Y:           connection.Y,
		CreatedTime: connection.CreatedTime,
	}
}
