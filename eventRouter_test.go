package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, c chan mapEvent) mapEvent {
	t.Helper()
	select {
	case e, ok := <-c:
		require.True(t, ok, "channel closed")
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
	}
	return mapEvent{}
}

func TestEventRouter(t *testing.T) {
	r := newMapEventRouter()
	exit := make(chan struct{})
	go r.Run(exit)

	first := r.Connect()
	r.Broadcast(mapEvent{Action: eventDepth, Data: 10})
	r.Broadcast(mapEvent{Action: eventHover, Data: "X: 1 Z: 2"})
	r.Broadcast(mapEvent{Action: eventDepth, Data: 20})
	assert.Equal(t, mapEvent{Action: eventDepth, Data: 10}, recv(t, first))
	assert.Equal(t, eventHover, recv(t, first).Action)
	assert.Equal(t, mapEvent{Action: eventDepth, Data: 20}, recv(t, first))

	// late clients only get the latest state
	late := r.Connect()
	assert.Equal(t, mapEvent{Action: eventDepth, Data: 20}, recv(t, late))

	r.Disconnect(first)
	_, ok := <-first
	assert.False(t, ok)

	close(exit)
	_, ok = <-late
	assert.False(t, ok)
	<-r.done
	_, ok = <-r.Connect()
	assert.False(t, ok)
	r.Disconnect(late)
}
