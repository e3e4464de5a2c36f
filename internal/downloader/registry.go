package downloader

import (
	"sync"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/classifier"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
)

// Registry maps each platform to the Downloader that serves it.
type Registry struct {
	mu          sync.RWMutex
	downloaders map[classifier.Platform]Downloader
}

func NewRegistry() *Registry {
	return &Registry{downloaders: make(map[classifier.Platform]Downloader)}
}

// Register binds d to platform, replacing any previous binding. Unknown cannot be registered.
func (r *Registry) Register(platform classifier.Platform, d Downloader) {
	if platform == classifier.Unknown || d == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downloaders[platform] = d
}

func (r *Registry) Lookup(platform classifier.Platform) (Downloader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.downloaders[platform]
	if !ok {
		return nil, utils.WrapError(utils.ErrUnrecognizedURL, "no downloader for platform", map[string]any{
			"platform": platform.String(),
		})
	}
	return d, nil
}

func (r *Registry) Platforms() []classifier.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	platforms := make([]classifier.Platform, 0, len(r.downloaders))
	for p := range r.downloaders {
		platforms = append(platforms, p)
	}
	return platforms
}
