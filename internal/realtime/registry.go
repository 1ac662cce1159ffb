package realtime

import (
	"context"
	"sort"
	"sync"

	"github.com/RedHatInsights/console-link/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

type DuplicateChannelError struct {
	Key string
}

func (d DuplicateChannelError) Error() string {
	return "duplicate channel " + d.Key
}

type ChannelRegistrar interface {
	Register(ctx context.Context, channel *Channel) error
	Unregister(ctx context.Context, resource string, id string)
}

type ChannelLocator interface {
	GetChannel(ctx context.Context, resource string, id string) *Channel
	GetAllChannels(ctx context.Context) []*Channel
}

// Registry holds at most one channel per resource/id pair.
type Registry struct {
	channels map[string]map[string]*Channel
	sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]map[string]*Channel),
	}
}

func (r *Registry) Register(ctx context.Context, channel *Channel) error {
	r.Lock()
	defer r.Unlock()

	byId, exists := r.channels[channel.resource]
	if !exists {
		byId = make(map[string]*Channel)
		r.channels[channel.resource] = byId
	}

	if _, exists := byId[channel.id]; exists {
		logger.Log.WithFields(logrus.Fields{"channel": channel.Key()}).Warn("Attempting to register duplicate channel")
		return DuplicateChannelError{Key: channel.Key()}
	}

	byId[channel.id] = channel

	logger.Log.WithFields(logrus.Fields{"channel": channel.Key()}).Debug("Registered a channel")
	return nil
}

func (r *Registry) Unregister(ctx context.Context, resource string, id string) {
	r.Lock()
	defer r.Unlock()

	byId, exists := r.channels[resource]
	if !exists {
		return
	}
	delete(byId, id)

	if len(byId) == 0 {
		delete(r.channels, resource)
	}

	logger.Log.WithFields(logrus.Fields{"channel": Key(resource, id)}).Debug("Unregistered a channel")
}

func (r *Registry) GetChannel(ctx context.Context, resource string, id string) *Channel {
	r.RLock()
	defer r.RUnlock()

	byId, exists := r.channels[resource]
	if !exists {
		return nil
	}

	return byId[id]
}

// GetAllChannels returns the registered channels ordered by key.
func (r *Registry) GetAllChannels(ctx context.Context) []*Channel {
	r.RLock()
	defer r.RUnlock()

	var all []*Channel
	for _, byId := range r.channels {
		for _, channel := range byId {
			all = append(all, channel)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Key() < all[j].Key()
	})

	return all
}
