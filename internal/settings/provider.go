package settings

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Loader — источник сырых значений (в приложении это *Store).
type Loader interface {
	LoadAll(ctx context.Context) (map[string]string, error)
}

// Provider отдаёт актуальный Snapshot.
//
// Снимок живёт ttl, затем перечитывается при следующем обращении.
// Invalidate сбрасывает его явно (например, после правки настроек админом).
// Ошибка чтения никогда не доходит до вызывающего: остаётся прошлый снимок,
// а если его ещё нет — значения по умолчанию.
type Provider struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	snap    Snapshot
	loaded  bool
	expires time.Time
}

// NewProvider создаёт провайдер настроек.
func NewProvider(loader Loader, ttl time.Duration) *Provider {
	return &Provider{
		loader: loader,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Snapshot возвращает текущий снимок, при необходимости перечитывая БД.
func (p *Provider) Snapshot(ctx context.Context) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded && p.now().Before(p.expires) {
		return p.snap
	}

	if err := p.reloadLocked(ctx); err != nil {
		log.WithError(err).Warn("Не удалось обновить настройки, используем последний снимок")
		if !p.loaded {
			p.snap = Defaults()
			p.snap.LoadedAt = p.now()
			p.loaded = true
		}
		// Повторим попытку не раньше чем через ttl, чтобы не долбить БД
		p.expires = p.now().Add(p.ttl)
	}
	return p.snap
}

// Reload принудительно перечитывает настройки и возвращает ошибку, если она была.
func (p *Provider) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloadLocked(ctx)
}

// Invalidate помечает снимок устаревшим — следующий Snapshot перечитает БД.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expires = time.Time{}
}

func (p *Provider) reloadLocked(ctx context.Context) error {
	values, err := p.loader.LoadAll(ctx)
	if err != nil {
		return err
	}

	snap := FromValues(values)
	snap.LoadedAt = p.now()

	p.snap = snap
	p.loaded = true
	p.expires = snap.LoadedAt.Add(p.ttl)

	log.WithField("keys", len(values)).Debug("Настройки загружены")
	return nil
}
