package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/session-scheduler/internal/application"
	"github.com/example/session-scheduler/internal/persistence"
)

// ServiceFactory builds application services with a deterministic clock and
// id sequence.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Config      application.SessionServiceConfig
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory returns a factory using a frozen ReferenceTime clock and
// "id-N" identifiers unless overridden.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

func WithClock(clock *Clock) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Clock = clock }
}

func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.IDGenerator = generator }
}

// WithSessionConfig sets the time zone, preview and detector tuning.
func WithSessionConfig(cfg application.SessionServiceConfig) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Config = cfg }
}

func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Logger = logger }
}

// Services bundles the services sharing one store.
type Services struct {
	Rooms    *application.RoomService
	Sessions *application.SessionService
}

// Build wires every service to store.
func (f *ServiceFactory) Build(store persistence.Storage) Services {
	return Services{
		Rooms:    f.NewRoomService(store),
		Sessions: f.NewSessionService(store, store),
	}
}

func (f *ServiceFactory) NewSessionService(store application.SessionStore, rooms application.RoomCatalog) *application.SessionService {
	return application.NewSessionServiceWithLogger(store, rooms, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Config, f.Logger)
}

func (f *ServiceFactory) NewRoomService(rooms persistence.RoomRepository) *application.RoomService {
	return application.NewRoomServiceWithLogger(rooms, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}
