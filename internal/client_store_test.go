package internal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateClientRejectsDuplicates(t *testing.T) {
	store := CreateClientStore(4)

	require.NoError(t, store.CreateClient("a", "alpha", 1))

	err := store.CreateClient("a", "alpha-again", 2)
	var dup *DuplicateClientIdError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "a", dup.Id)
}

func TestCreateClientEnforcesMaxConnections(t *testing.T) {
	store := CreateClientStore(1)

	require.NoError(t, store.CreateClient("a", "alpha", 1))

	err := store.CreateClient("b", "beta", 2)
	var tooMany *TooManyClientsError
	require.True(t, errors.As(err, &tooMany))

	store.RemoveClient("a")
	require.NoError(t, store.CreateClient("b", "beta", 3))
	assert.Equal(t, 1, store.ClientCount())
}

func TestSetPositionOnMissingClient(t *testing.T) {
	store := CreateClientStore(0)

	err := store.SetPosition("ghost", 1, 2, 10)
	var missing *MissingClientIdError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "ghost", missing.Id)
}

func TestListClientsExcludesRequesterAndOrdersByCreation(t *testing.T) {
	store := CreateClientStore(0)
	require.NoError(t, store.CreateClient("c", "third", 30))
	require.NoError(t, store.CreateClient("a", "first", 10))
	require.NoError(t, store.CreateClient("b", "second", 20))
	require.NoError(t, store.SetPosition("b", 3, 4, 21))

	all := store.ListClients("")
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].Id, all[1].Id, all[2].Id})

	others := store.ListClients("a")
	require.Len(t, others, 2)
	assert.Equal(t, "b", others[0].Id)
	assert.True(t, others[0].HasPosition)
	assert.Equal(t, float32(3), others[0].X)
	assert.Equal(t, float32(4), others[0].Y)
	assert.False(t, others[1].HasPosition)
}

func TestIdleClientList(t *testing.T) {
	store := CreateClientStore(0)
	require.NoError(t, store.CreateClient("a", "alpha", 10))
	require.NoError(t, store.CreateClient("b", "beta", 10))
	require.NoError(t, store.SetRecvTimestamp("b", 50))

	assert.Equal(t, []string{"a"}, store.GetIdleClientList(40))
	assert.Empty(t, store.GetIdleClientList(5))
}

func TestTextMessageCounter(t *testing.T) {
	store := CreateClientStore(0)

	assert.Equal(t, uint64(1), store.IncrementTextMessageCount())
	assert.Equal(t, uint64(2), store.IncrementTextMessageCount())
	assert.Equal(t, uint64(2), store.TextMessageCount())
}
