package service

import (
	"log/slog"

	"github.com/ritams/smashit-sub000/internal/dispatch"
	redisx "github.com/ritams/smashit-sub000/internal/redis"
	postgres "github.com/ritams/smashit-sub000/internal/repository/postgres"
	redis "github.com/ritams/smashit-sub000/internal/repository/redis"
	"github.com/ritams/smashit-sub000/internal/service/admission"
	"github.com/ritams/smashit-sub000/internal/service/directory"
	"github.com/ritams/smashit-sub000/internal/service/query"
)

type Services struct {
	Admission *admission.Service
	Query     *query.Service
	Directory *directory.Service
}

type Config struct {
	Query query.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redisx.EventsPubSub,
	disp *dispatch.Dispatcher,
	logger *slog.Logger,
	cfg Config,
) *Services {
	return &Services{
		Admission: admission.New(store.Spaces(), store.Bookings(), pubsub, cache, disp, logger),
		Query:     query.New(store, cache, cfg.Query),
		Directory: directory.New(store, cache, pubsub, logger),
	}
}
